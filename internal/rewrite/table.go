package rewrite

// Subcommands with a dedicated rtk filter. Each one becomes its own rule so
// that an unlisted subcommand (e.g. "git rebase") is left alone.
var (
	gitSubcommands   = []string{"status", "diff", "log", "add", "commit", "push", "pull", "branch", "fetch", "stash", "show"}
	cargoSubcommands = []string{"test", "build", "clippy"}
	goSubcommands    = []string{"test", "build", "vet"}
)

var defaultTable = buildDefaultTable()

// DefaultRules returns the built-in rule table. The order is part of the
// behavior: for overlapping prefixes (pnpm vitest / pnpm test / vitest) the
// first listed rule wins.
func DefaultRules() Table {
	return defaultTable
}

func rule(name, family, pattern string, tmpl Template) Rule {
	return Rule{
		Name:     name,
		Family:   family,
		Matcher:  MustRegexp(WidenSpace(pattern)),
		Template: tmpl,
	}
}

func subcommandRules(tool string, subs []string) []Rule {
	rules := make([]Rule, 0, len(subs))
	for _, sub := range subs {
		rules = append(rules, rule(
			tool+"-"+sub,
			tool,
			`^`+tool+`\s+`+sub+`(\s|$)`,
			Then(ProxyToken+" "+tool+" "+sub, 1),
		))
	}
	return rules
}

func buildDefaultTable() Table {
	var rules []Rule

	rules = append(rules, subcommandRules("git", gitSubcommands)...)
	rules = append(rules, rule("gh", "gh", `^gh\s+(pr|issue|run)(\s|$)`, Then("rtk gh ", 1, 2)))
	rules = append(rules, subcommandRules("cargo", cargoSubcommands)...)

	// File operations. cat/rg/grep need an argument; the whitespace run is
	// consumed and replaced by a single space.
	rules = append(rules,
		rule("cat", "read", `^cat\s+`, Then("rtk read ")),
		rule("grep", "grep", `^(rg|grep)\s+`, Then("rtk grep ")),
		rule("ls", "ls", `^ls(\s|$)`, Then("rtk ls", 1)),
	)

	// JS/TS tooling.
	rules = append(rules,
		rule("vitest", "vitest", `^(pnpm\s+)?vitest(\s|$)`, Then("rtk vitest run", 2)),
		rule("pnpm-test", "vitest", `^pnpm\s+test(\s|$)`, Then("rtk vitest run", 1)),
		rule("pnpm-tsc", "tsc", `^pnpm\s+tsc(\s|$)`, Then("rtk tsc", 1)),
		rule("tsc", "tsc", `^(npx\s+)?tsc(\s|$)`, Then("rtk tsc", 2)),
		rule("pnpm-lint", "lint", `^pnpm\s+lint(\s|$)`, Then("rtk lint", 1)),
		rule("eslint", "lint", `^(npx\s+)?eslint(\s|$)`, Then("rtk lint", 2)),
		rule("prettier", "prettier", `^(npx\s+)?prettier(\s|$)`, Then("rtk prettier", 2)),
		rule("playwright", "playwright", `^(npx\s+)?playwright(\s|$)`, Then("rtk playwright", 2)),
		rule("pnpm-playwright", "playwright", `^pnpm\s+playwright(\s|$)`, Then("rtk playwright", 1)),
		rule("prisma", "prisma", `^(npx\s+)?prisma(\s|$)`, Then("rtk prisma", 2)),
	)

	// Containers.
	rules = append(rules,
		rule("docker", "docker", `^docker\s+(ps|images|logs)(\s|$)`, Then("rtk docker ", 1, 2)),
		rule("kubectl", "kubectl", `^kubectl\s+(get|logs)(\s|$)`, Then("rtk kubectl ", 1, 2)),
	)

	rules = append(rules, rule("curl", "curl", `^curl\s+`, Then("rtk curl ")))

	rules = append(rules, rule("pnpm", "pnpm", `^pnpm\s+(list|ls|outdated)(\s|$)`, Then("rtk pnpm ", 1, 2)))

	// Python tooling.
	rules = append(rules,
		rule("pytest", "pytest", `^pytest(\s|$)`, Then("rtk pytest", 1)),
		rule("python-pytest", "pytest", `^python\s+-m\s+pytest(\s|$)`, Then("rtk pytest", 1)),
		rule("ruff", "ruff", `^ruff\s+(check|format)(\s|$)`, Then("rtk ruff ", 1, 2)),
		rule("pip", "pip", `^pip\s+(list|outdated|install|show)(\s|$)`, Then("rtk pip ", 1, 2)),
		rule("uv-pip", "pip", `^uv\s+pip\s+(list|outdated|install|show)(\s|$)`, Then("rtk pip ", 1, 2)),
	)

	rules = append(rules, subcommandRules("go", goSubcommands)...)
	rules = append(rules, rule("golangci-lint", "golangci-lint", `^golangci-lint(\s|$)`, Then("rtk golangci-lint", 1)))

	return NewTable(rules...)
}
