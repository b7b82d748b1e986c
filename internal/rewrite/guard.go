package rewrite

import (
	"regexp"
	"strings"
)

// Built-in skip reasons.
const (
	SkipAlreadyProxied = "already-proxied"
	SkipHeredoc        = "heredoc"
)

// proxiedPattern recognizes commands that already go through rtk, either by
// bare name or by path (/usr/local/bin/rtk ...).
var proxiedPattern = regexp.MustCompile(`^` + ProxyToken + Space + `|/` + ProxyToken + Space)

// ShouldSkip reports whether command must bypass rewriting: it is already
// proxied or it carries a heredoc, whose body could spuriously match rules.
func ShouldSkip(command string) bool {
	return builtinSkip(command) != ""
}

func builtinSkip(command string) string {
	if proxiedPattern.MatchString(command) {
		return SkipAlreadyProxied
	}
	if strings.Contains(command, "<<") {
		return SkipHeredoc
	}
	return ""
}

// Guard is an additional pre-match check. Guards can only add skips; the
// built-in checks always run first.
type Guard interface {
	Name() string
	Skip(command string) bool
}

type funcGuard struct {
	name string
	fn   func(string) bool
}

func (g funcGuard) Name() string            { return g.name }
func (g funcGuard) Skip(command string) bool { return g.fn(command) }

// GuardFunc adapts a plain function to a named Guard.
func GuardFunc(name string, fn func(command string) bool) Guard {
	return funcGuard{name: name, fn: fn}
}
