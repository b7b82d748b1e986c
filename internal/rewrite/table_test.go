package rewrite

import "testing"

func TestDefaultRules_Catalog(t *testing.T) {
	eng := New(DefaultRules())

	tests := []struct {
		command string
		want    string
		rule    string
	}{
		{"git diff --cached", "rtk git diff --cached", "git-diff"},
		{"git log --oneline -5", "rtk git log --oneline -5", "git-log"},
		{"git add -A", "rtk git add -A", "git-add"},
		{"git commit -m 'x'", "rtk git commit -m 'x'", "git-commit"},
		{"git push origin main", "rtk git push origin main", "git-push"},
		{"git pull --rebase", "rtk git pull --rebase", "git-pull"},
		{"git branch -a", "rtk git branch -a", "git-branch"},
		{"git fetch", "rtk git fetch", "git-fetch"},
		{"git stash pop", "rtk git stash pop", "git-stash"},
		{"git show HEAD", "rtk git show HEAD", "git-show"},
		{"gh pr list", "rtk gh pr list", "gh"},
		{"gh issue view 12", "rtk gh issue view 12", "gh"},
		{"gh run watch", "rtk gh run watch", "gh"},
		{"cargo test --all", "rtk cargo test --all", "cargo-test"},
		{"cargo build --release", "rtk cargo build --release", "cargo-build"},
		{"cargo clippy -- -D warnings", "rtk cargo clippy -- -D warnings", "cargo-clippy"},
		{"cat   notes.md", "rtk read notes.md", "cat"},
		{"grep -rn TODO src", "rtk grep -rn TODO src", "grep"},
		{"rg TODO", "rtk grep TODO", "grep"},
		{"ls -la", "rtk ls -la", "ls"},
		{"pnpm lint", "rtk lint", "pnpm-lint"},
		{"eslint src", "rtk lint src", "eslint"},
		{"npx eslint .", "rtk lint .", "eslint"},
		{"prettier --check .", "rtk prettier --check .", "prettier"},
		{"npx prisma migrate dev", "rtk prisma migrate dev", "prisma"},
		{"docker ps -a", "rtk docker ps -a", "docker"},
		{"docker images", "rtk docker images", "docker"},
		{"kubectl get pods", "rtk kubectl get pods", "kubectl"},
		{"kubectl logs web-1", "rtk kubectl logs web-1", "kubectl"},
		{"curl -s https://example.com", "rtk curl -s https://example.com", "curl"},
		{"pnpm list --depth 0", "rtk pnpm list --depth 0", "pnpm"},
		{"pnpm ls", "rtk pnpm ls", "pnpm"},
		{"pnpm outdated", "rtk pnpm outdated", "pnpm"},
		{"pytest -q tests/", "rtk pytest -q tests/", "pytest"},
		{"python -m pytest -x", "rtk pytest -x", "python-pytest"},
		{"ruff format src", "rtk ruff format src", "ruff"},
		{"pip install requests", "rtk pip install requests", "pip"},
		{"pip show flask", "rtk pip show flask", "pip"},
		{"uv pip list", "rtk pip list", "uv-pip"},
		{"go test ./...", "rtk go test ./...", "go-test"},
		{"go build ./cmd/...", "rtk go build ./cmd/...", "go-build"},
		{"go vet ./...", "rtk go vet ./...", "go-vet"},
		{"golangci-lint run", "rtk golangci-lint run", "golangci-lint"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got := eng.Attempt(tt.command)
			if !got.Rewritten {
				t.Fatalf("Attempt(%q) unchanged (%s), want %q", tt.command, got.Reason, tt.want)
			}
			if got.Command != tt.want {
				t.Errorf("Attempt(%q) = %q, want %q", tt.command, got.Command, tt.want)
			}
			if got.Rule != tt.rule {
				t.Errorf("Attempt(%q) rule = %q, want %q", tt.command, got.Rule, tt.rule)
			}
		})
	}
}

func TestDefaultRules_UnlistedSubcommandsUnchanged(t *testing.T) {
	eng := New(DefaultRules())

	for _, cmd := range []string{
		"git rebase -i HEAD~3",
		"git checkout main",
		"gh repo clone x/y",
		"cargo run",
		"docker compose up",
		"kubectl apply -f x.yaml",
		"pnpm install",
		"pip freeze",
		"uv sync",
		"go mod tidy",
		"cat",
		"curl",
		"npm test",
		"make build",
	} {
		if got := eng.Attempt(cmd); got.Rewritten {
			t.Errorf("Attempt(%q) = %q, want unchanged", cmd, got.Command)
		}
	}
}

func TestDefaultRules_Invariants(t *testing.T) {
	table := DefaultRules()
	if table.Len() < 40 {
		t.Fatalf("default table has %d rules, want at least 40", table.Len())
	}

	names := make(map[string]bool)
	for _, r := range table.Rules() {
		if names[r.Name] {
			t.Errorf("duplicate rule name %q", r.Name)
		}
		names[r.Name] = true

		if r.Family == "" {
			t.Errorf("rule %q has no family", r.Name)
		}
		if pattern := r.Matcher.String(); pattern == "" || pattern[0] != '^' {
			t.Errorf("rule %q pattern %q is not anchored", r.Name, pattern)
		}
	}
}

func TestDefaultRules_StableOrder(t *testing.T) {
	a := DefaultRules().Rules()
	b := buildDefaultTable().Rules()
	if len(a) != len(b) {
		t.Fatalf("rule count differs between builds: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			t.Errorf("rule %d: %q vs %q", i, a[i].Name, b[i].Name)
		}
	}
	if a[0].Name != "git-status" {
		t.Errorf("first rule = %q, want git-status", a[0].Name)
	}
	if last := a[len(a)-1].Name; last != "golangci-lint" {
		t.Errorf("last rule = %q, want golangci-lint", last)
	}
}

func TestTable_RulesReturnsCopy(t *testing.T) {
	table := DefaultRules()
	rules := table.Rules()
	rules[0] = Rule{Name: "mutated"}
	if table.Rules()[0].Name == "mutated" {
		t.Error("mutating Rules() result changed the table")
	}
}

func TestTable_LookupAndFamilies(t *testing.T) {
	table := DefaultRules()

	r, ok := table.Lookup("uv-pip")
	if !ok {
		t.Fatal("uv-pip rule not found")
	}
	if r.Family != "pip" {
		t.Errorf("uv-pip family = %q, want pip", r.Family)
	}
	if _, ok := table.Lookup("nope"); ok {
		t.Error("Lookup(nope) should fail")
	}

	families := table.Families()
	if families[0] != "git" {
		t.Errorf("first family = %q, want git", families[0])
	}
	seen := make(map[string]bool)
	for _, f := range families {
		if seen[f] {
			t.Errorf("family %q listed twice", f)
		}
		seen[f] = true
	}
}

func TestRegexp_RejectsUnanchored(t *testing.T) {
	if _, err := Regexp(`cat\s+`); err == nil {
		t.Error("unanchored pattern should be rejected")
	}
	if _, err := Regexp(`^(`); err == nil {
		t.Error("invalid pattern should be rejected")
	}
}

func TestRegexp_AlternationMustStartAtZero(t *testing.T) {
	m := MustRegexp(`^a|b`)
	if _, ok := m.Match("xb"); ok {
		t.Error("alternation matched mid-string")
	}
	if c, ok := m.Match("b rest"); !ok || c.Rest != " rest" {
		t.Errorf("Match(b rest) = %+v, %v", c, ok)
	}
}

func TestCaptures_GroupOutOfRange(t *testing.T) {
	c := Captures{Groups: []string{"git status ", " "}}
	if c.Group(5) != "" || c.Group(-1) != "" {
		t.Error("out-of-range groups should be empty")
	}
}

func TestRegexp_UnmatchedOptionalGroupIsEmpty(t *testing.T) {
	m := MustRegexp(`^(npx\s+)?tsc(\s|$)`)
	c, ok := m.Match("tsc")
	if !ok {
		t.Fatal("expected match")
	}
	if c.Group(1) != "" || c.Group(2) != "" || c.Rest != "" {
		t.Errorf("captures = %+v", c)
	}
	if NumGroups(m) != 2 {
		t.Errorf("NumGroups = %d, want 2", NumGroups(m))
	}
	if NumGroups(nil) != -1 {
		t.Error("NumGroups(nil) should be -1")
	}
}
