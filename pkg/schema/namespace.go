// Package schema defines the data structures shared by the settings provider and its clients.
package schema

import (
	"fmt"
	"strconv"
)

// Namespace partitions the settings key space. Each namespace has its own table,
// cache, version counter and validator map.
type Namespace string

const (
	System Namespace = "system"
	Secure Namespace = "secure"
	Global Namespace = "global"
)

// Namespaces lists every namespace in table creation order.
var Namespaces = []Namespace{System, Secure, Global}

// ParseNamespace maps a wire or table name to a Namespace.
func ParseNamespace(s string) (Namespace, error) {
	switch Namespace(s) {
	case System, Secure, Global:
		return Namespace(s), nil
	}
	return "", fmt.Errorf("unknown namespace %q", s)
}

func (n Namespace) String() string { return string(n) }

// UserID identifies the user a setting belongs to.
type UserID int

// UserSystem is the primary user. Only it owns a Global table.
const UserSystem UserID = 0

// ParseUserID parses a decimal user id.
func ParseUserID(s string) (UserID, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return UserID(id), nil
}

func (u UserID) String() string { return strconv.Itoa(int(u)) }

// Setting is a single name/value row as exchanged by list and backup operations.
type Setting struct {
	Namespace Namespace `json:"namespace"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
}

// Change describes a committed write. It carries no value; consumers re-read.
type Change struct {
	Namespace Namespace `json:"namespace"`
	Name      string    `json:"name"`
	User      UserID    `json:"user"`
}

// URI returns the observer key for a setting, e.g. "evsettings://system/qs_quick_pulldown".
func URI(ns Namespace, name string) string {
	return "evsettings://" + string(ns) + "/" + name
}

// URI returns the observer key of the changed setting.
func (c Change) URI() string { return URI(c.Namespace, c.Name) }
