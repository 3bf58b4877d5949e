package api

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRX = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	colorRX = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

type validator struct {
	Errors map[string]string `json:"errors"`
}

func newValidator() *validator {
	return &validator{Errors: make(map[string]string)}
}

func (v *validator) valid() bool {
	return len(v.Errors) == 0
}

func (v *validator) addError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

func (v *validator) check(ok bool, key, message string) {
	if !ok {
		v.addError(key, message)
	}
}

func (v *validator) checkNotBlank(value, key string) {
	v.check(strings.TrimSpace(value) != "", key, "must not be blank")
}

func (v *validator) checkMaxLength(value string, n int, key string) {
	v.check(utf8.RuneCountInString(value) <= n, key, fmt.Sprintf("must be at most %d characters", n))
}

func (v *validator) checkEmail(value, key string) {
	v.check(emailRX.MatchString(value), key, "must be a valid email address")
}
