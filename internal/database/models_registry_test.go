package database

import (
	"reflect"
	"testing"

	modelspkg "socialconnect/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPersistentModels_Set(t *testing.T) {
	t.Parallel()

	var names []string
	for _, model := range PersistentModels() {
		names = append(names, reflect.TypeOf(model).Elem().Name())
	}
	assert.ElementsMatch(t,
		[]string{"User", "RefreshToken", "Post", "Comment", "Like", "Follow", "Notification"},
		names,
	)
	_, ok := PersistentModels()[0].(*modelspkg.User)
	assert.True(t, ok, "users must migrate before the tables referencing them")
}
