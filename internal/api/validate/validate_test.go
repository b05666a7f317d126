package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required,eth_addr"`
	Amount  int64  `json:"amount" validate:"gt=0"`
	Status  string `json:"status,omitempty" validate:"omitempty,oneof=ENDED"`
}

func TestStructCollectsFieldErrors(t *testing.T) {
	err := Struct(sample{Email: "nope", Address: "0x12", Amount: 0, Status: "ACTIVE"})
	require.Error(t, err)

	errs, ok := err.(Errs)
	require.True(t, ok)
	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field] = e.Msg
	}
	assert.Equal(t, "must be a valid email", fields["email"])
	assert.Contains(t, fields["address"], "hex address")
	assert.Equal(t, "must be > 0", fields["amount"])
	assert.Equal(t, "must be one of: ENDED", fields["status"])
	assert.Contains(t, err.Error(), "email: ")
}

func TestStructPasses(t *testing.T) {
	assert.NoError(t, Struct(sample{
		Email:   "a@b.co",
		Address: "0xabcdef0123456789abcdef0123456789abcdef01",
		Amount:  1,
	}))
}
