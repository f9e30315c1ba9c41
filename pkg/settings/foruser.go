package settings

import (
	"context"

	"github.com/evervolv/evsettings/pkg/schema"
)

// The ForUser variants act on behalf of user instead of the table's own user.
// They are shorthands for AsUser(user).

func (t *Table) GetStringForUser(ctx context.Context, name string, user schema.UserID) (string, bool) {
	return t.AsUser(user).GetString(ctx, name)
}

func (t *Table) GetStringDefaultForUser(ctx context.Context, name, def string, user schema.UserID) string {
	return t.AsUser(user).GetStringDefault(ctx, name, def)
}

func (t *Table) PutStringForUser(ctx context.Context, name, value string, user schema.UserID) bool {
	return t.AsUser(user).PutString(ctx, name, value)
}

func (t *Table) GetIntForUser(ctx context.Context, name string, user schema.UserID) (int, error) {
	return t.AsUser(user).GetInt(ctx, name)
}

func (t *Table) GetIntDefaultForUser(ctx context.Context, name string, def int, user schema.UserID) int {
	return t.AsUser(user).GetIntDefault(ctx, name, def)
}

func (t *Table) PutIntForUser(ctx context.Context, name string, value int, user schema.UserID) bool {
	return t.AsUser(user).PutInt(ctx, name, value)
}

func (t *Table) GetLongForUser(ctx context.Context, name string, user schema.UserID) (int64, error) {
	return t.AsUser(user).GetLong(ctx, name)
}

func (t *Table) GetLongDefaultForUser(ctx context.Context, name string, def int64, user schema.UserID) int64 {
	return t.AsUser(user).GetLongDefault(ctx, name, def)
}

func (t *Table) PutLongForUser(ctx context.Context, name string, value int64, user schema.UserID) bool {
	return t.AsUser(user).PutLong(ctx, name, value)
}

func (t *Table) GetFloatForUser(ctx context.Context, name string, user schema.UserID) (float32, error) {
	return t.AsUser(user).GetFloat(ctx, name)
}

func (t *Table) GetFloatDefaultForUser(ctx context.Context, name string, def float32, user schema.UserID) float32 {
	return t.AsUser(user).GetFloatDefault(ctx, name, def)
}

func (t *Table) PutFloatForUser(ctx context.Context, name string, value float32, user schema.UserID) bool {
	return t.AsUser(user).PutFloat(ctx, name, value)
}
