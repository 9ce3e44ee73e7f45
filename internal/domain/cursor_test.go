package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDChecksum(t *testing.T) {
	t.Run("empty checksum is empty string", func(t *testing.T) {
		var sum IDChecksum
		assert.Equal(t, "", sum.Sum())
	})

	t.Run("same ids in order give the same sum", func(t *testing.T) {
		var a, b IDChecksum
		for _, id := range []string{"P-001", "P-002", "P-003"} {
			a.Add(id)
			b.Add(id)
		}
		assert.Equal(t, a.Sum(), b.Sum())
	})

	t.Run("order matters", func(t *testing.T) {
		var a, b IDChecksum
		a.Add("P-001")
		a.Add("P-002")
		b.Add("P-002")
		b.Add("P-001")
		assert.NotEqual(t, a.Sum(), b.Sum())
	})

	t.Run("chaining prevents boundary shifting", func(t *testing.T) {
		var a, b IDChecksum
		a.Add("P-00")
		a.Add("1")
		b.Add("P-001")
		assert.NotEqual(t, a.Sum(), b.Sum())
	})

	t.Run("sum is stable across reads", func(t *testing.T) {
		var sum IDChecksum
		sum.Add("P-001")
		first := sum.Sum()
		assert.Equal(t, first, sum.Sum())

		sum.Add("P-002")
		assert.NotEqual(t, first, sum.Sum())
	})
}

func TestCandidateRecordPHI(t *testing.T) {
	rec := NewCandidateRecord("P-001", []string{"dob"})
	rec.Set("dob", "1985-03-20")
	rec.Set("weight", "70")

	assert.True(t, rec.IsPHI("dob"))
	assert.False(t, rec.IsPHI("weight"))
	assert.True(t, rec.IsPHI("dob___1"), "checkbox expansion columns inherit the base field's flag")

	v, ok := rec.Get("dob")
	assert.True(t, ok)
	assert.Equal(t, "1985-03-20", v)

	t.Run("values returns a copy", func(t *testing.T) {
		vals := rec.Values()
		vals["weight"] = "999"
		got, _ := rec.Get("weight")
		assert.Equal(t, "70", got)
	})
}

func TestOutcomeTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusSkipped.Terminal())
}

func TestFieldTypeValid(t *testing.T) {
	for _, ft := range []FieldType{FieldText, FieldDate, FieldRadio, FieldDropdown, FieldCheckbox, FieldCalculated, FieldFile} {
		assert.True(t, ft.Valid(), string(ft))
	}
	assert.False(t, FieldType("blob").Valid())
}
