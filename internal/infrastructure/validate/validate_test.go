package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose_FirstErrorWins(t *testing.T) {
	v := Compose(Required(), MinLength(3))

	err := v("  ")
	require.Error(t, err)
	assert.Equal(t, "is required", err.Error())

	err = v("ab")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 3")

	assert.NoError(t, v("abc"))
}

func TestField_PrefixesName(t *testing.T) {
	err := Field("room id", NoSpaces())("a b")
	require.Error(t, err)
	assert.Equal(t, "room id must not contain spaces", err.Error())
}

func TestLengthCountsRunes(t *testing.T) {
	assert.NoError(t, MaxLength(2)("éé"))
	assert.Error(t, MaxBytes(2)("éé"))
}

func TestLengthBetween(t *testing.T) {
	v := LengthBetween(2, 4)
	assert.Error(t, v("a"))
	assert.NoError(t, v("abcd"))
	assert.Error(t, v(strings.Repeat("a", 5)))
}

func TestValidUTF8(t *testing.T) {
	assert.NoError(t, ValidUTF8()("hello"))
	assert.Error(t, ValidUTF8()(string([]byte{0xff, 0xfe})))
}
