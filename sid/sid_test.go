package sid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUniqueAndValid(t *testing.T) {
	a := New()
	b := New()

	assert.True(t, a.Valid())
	assert.True(t, b.Valid())
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
}

func TestZeroValueIsInvalid(t *testing.T) {
	var z Sid

	assert.False(t, z.Valid())
	assert.False(t, z.Equal(New()))
}

func TestCopySharesIdentity(t *testing.T) {
	a := New()
	b := a

	assert.True(t, a.Equal(b))
}
