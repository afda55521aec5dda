package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateModeApply(t *testing.T) {
	prior := "fui al parque"
	empty := ""

	assert.Equal(t, "fui al parque con mi perro", UpdateAppend.Apply(&prior, "con mi perro"))
	assert.Equal(t, "con mi perro", UpdateAppend.Apply(nil, "con mi perro"))
	assert.Equal(t, "con mi perro", UpdateAppend.Apply(&empty, "con mi perro"))
	assert.Equal(t, "nuevo texto", UpdateReplace.Apply(&prior, "nuevo texto"))
}

func TestNewEntryValidate(t *testing.T) {
	blank := "   "
	audio := "memo.webm"

	assert.ErrorIs(t, NewEntry{}.Validate(), ErrEmptyEntry)
	assert.ErrorIs(t, NewEntry{Content: &blank}.Validate(), ErrEmptyEntry)
	assert.NoError(t, NewEntry{Audio: &audio}.Validate())
}

func TestUserFirstName(t *testing.T) {
	assert.Equal(t, "Ana", User{DisplayName: "Ana María López"}.FirstName())
	assert.Equal(t, "ana.lopez", User{Email: "ana.lopez@example.com"}.FirstName())
	assert.Equal(t, "", User{}.FirstName())
}
