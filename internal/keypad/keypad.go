// Package keypad implements the shared numeric entry pad. The pad holds no
// field state of its own: each focus binds a target, keystrokes are applied
// to that target's value, and dismiss unbinds it.
package keypad

import (
	"errors"
	"strings"
)

// Keys accepted by Press besides the digits.
const (
	KeyDot       = "."
	KeyBackspace = "backspace"
)

var (
	ErrNoTarget = errors.New("keypad has no focused field")
	ErrBadKey   = errors.New("unsupported key")
)

// Target is the field currently receiving keystrokes.
type Target struct {
	Field string
	Title string
	Value string
	// Set receives the new value after every keystroke.
	Set func(value string)
}

// Keypad routes keystrokes to the focused target.
type Keypad struct {
	target    *Target
	overwrite bool
}

// Focus binds a new target. The first keystroke after focusing replaces the
// existing value rather than appending to it.
func (k *Keypad) Focus(t Target) {
	k.target = &t
	k.overwrite = true
}

// Focused returns the bound target, if any.
func (k *Keypad) Focused() (Target, bool) {
	if k.target == nil {
		return Target{}, false
	}
	return *k.target, true
}

// Dismiss unbinds the target.
func (k *Keypad) Dismiss() {
	k.target = nil
	k.overwrite = false
}

// Press applies a key to the focused value and returns the new value.
func (k *Keypad) Press(key string) (string, error) {
	if k.target == nil {
		return "", ErrNoTarget
	}
	if !validKey(key) {
		return "", ErrBadKey
	}

	v := k.target.Value
	switch {
	case key == KeyBackspace:
		if v != "" {
			v = v[:len(v)-1]
		}
		k.overwrite = false
	case k.overwrite:
		if key == KeyDot {
			v = "0."
		} else {
			v = key
		}
		k.overwrite = false
	case key == KeyDot:
		if strings.Contains(v, KeyDot) {
			return v, nil
		}
		if v == "" {
			v = "0."
		} else {
			v += key
		}
	case v == "0":
		v = key
	default:
		v += key
	}

	k.target.Value = v
	if k.target.Set != nil {
		k.target.Set(v)
	}
	return v, nil
}

func validKey(key string) bool {
	if key == KeyDot || key == KeyBackspace {
		return true
	}
	return len(key) == 1 && key[0] >= '0' && key[0] <= '9'
}
