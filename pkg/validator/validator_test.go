package validator

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoolean(t *testing.T) {
	assert.True(t, Boolean.Validate("0"))
	assert.True(t, Boolean.Validate("1"))
	for _, v := range []string{"", "2", "-1", "true", "01", " 1"} {
		assert.False(t, Boolean.Validate(v), "value %q", v)
	}
}

func TestIntRangeBounds(t *testing.T) {
	ranges := [][2]int64{{0, 2}, {1, 255}, {0, 9}, {-5, 5}}
	for _, r := range ranges {
		v := IntRange(r[0], r[1])
		min, max := r[0], r[1]
		assert.True(t, v.Validate(strconv.FormatInt(min, 10)))
		assert.True(t, v.Validate(strconv.FormatInt(max, 10)))
		assert.False(t, v.Validate(strconv.FormatInt(min-1, 10)))
		assert.False(t, v.Validate(strconv.FormatInt(max+1, 10)))
		assert.False(t, v.Validate("not-a-number"))
		assert.False(t, v.Validate(""))
	}
}

func TestColorAcceptsFullInt32(t *testing.T) {
	assert.True(t, Color.Validate("-2147483648"))
	assert.True(t, Color.Validate("2147483647"))
	assert.False(t, Color.Validate("2147483648"))
	assert.False(t, Color.Validate("0xff00ff"))
}

func TestFloatRange(t *testing.T) {
	v := FloatRange(0, 1)
	assert.True(t, v.Validate("0"))
	assert.True(t, v.Validate("1.0"))
	assert.True(t, v.Validate("0.25"))
	assert.False(t, v.Validate("1.01"))
	assert.False(t, v.Validate("-0.1"))
	assert.False(t, v.Validate("NaN"))
	assert.False(t, v.Validate("abc"))
}

func TestDelimitedList(t *testing.T) {
	strict := DelimitedList([]string{"a", "b", "c"}, "|", false)
	assert.True(t, strict.Validate("a|b"))
	assert.True(t, strict.Validate("a||c|"))
	assert.False(t, strict.Validate("a|x"))
	assert.False(t, strict.Validate(""))
	assert.False(t, strict.Validate("||"))

	lenient := DelimitedList([]string{"a"}, ",", true)
	assert.True(t, lenient.Validate(""))
	assert.True(t, lenient.Validate(",,"))
	assert.False(t, lenient.Validate("a,b"))
}

func TestNonNegativeInt(t *testing.T) {
	assert.True(t, NonNegativeInt.Validate("0"))
	assert.True(t, NonNegativeInt.Validate("1500"))
	assert.False(t, NonNegativeInt.Validate("-1"))
	assert.False(t, NonNegativeInt.Validate("1.5"))
}

func TestPulseCustomValues(t *testing.T) {
	valid := []string{
		"",
		"com.example=-16711681;500;1000",
		"com.a=1;0;0|com.b=2;10;10",
	}
	for _, v := range valid {
		assert.True(t, PulseCustomValues.Validate(v), "value %q", v)
	}
	invalid := []string{
		"com.a",
		"=1;2;3",
		"com.a=1;2",
		"com.a=1;-2;3",
		"com.a=x;2;3",
		"com.a=1;2;3|com.b",
	}
	for _, v := range invalid {
		assert.False(t, PulseCustomValues.Validate(v), "value %q", v)
	}
}

func TestSplitNonEmpty(t *testing.T) {
	assert.Nil(t, SplitNonEmpty("", "|"))
	assert.Equal(t, []string{"a", "b"}, SplitNonEmpty("|a||b|", "|"))
}
