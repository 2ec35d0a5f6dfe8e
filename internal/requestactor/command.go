package requestactor

import "github.com/cargo-bsp/cargo-bsp-go/internal/workspace"

// commandSpec is the argv (and extra environment) that compileArgs,
// runArgs and testArgs build for each request kind: compile -> `cargo
// build`, run -> `cargo run`, test -> `cargo +nightly test`. The
// unit-graph variant of each passes `--unit-graph -Z unstable-options`
// in place of `--message-format=json`.
type commandSpec struct {
	Argv []string
	Env  []string
}

func compileArgs(pkg string, target *workspace.Target, features []string, defaultFeaturesDisabled bool, clientArgs []string, unitGraph bool) commandSpec {
	argv := []string{"cargo", "build", "--package", pkg}
	argv = append(argv, targetSelector(target)...)
	argv = append(argv, featureFlags(features, defaultFeaturesDisabled)...)
	if unitGraph {
		argv = append(argv, "--unit-graph", "-Z", "unstable-options")
	} else {
		argv = append(argv, "--message-format=json")
	}
	if len(clientArgs) > 0 {
		argv = append(argv, "--")
		argv = append(argv, clientArgs...)
	}
	return commandSpec{Argv: argv}
}

func runArgs(pkg string, target *workspace.Target, features []string, defaultFeaturesDisabled bool, clientArgs []string, unitGraph bool) commandSpec {
	argv := []string{"cargo", "run", "--package", pkg}
	argv = append(argv, targetSelector(target)...)
	argv = append(argv, featureFlags(features, defaultFeaturesDisabled)...)
	if unitGraph {
		argv = append(argv, "--unit-graph", "-Z", "unstable-options")
	} else {
		argv = append(argv, "--message-format=json")
	}
	if len(clientArgs) > 0 {
		argv = append(argv, "--")
		argv = append(argv, clientArgs...)
	}
	return commandSpec{Argv: argv}
}

func testArgs(pkg string, features []string, defaultFeaturesDisabled bool, clientArgs []string, unitGraph bool) commandSpec {
	argv := []string{"cargo", "+nightly", "test", "--package", pkg}
	argv = append(argv, featureFlags(features, defaultFeaturesDisabled)...)
	if unitGraph {
		argv = append(argv, "--unit-graph", "-Z", "unstable-options")
		return commandSpec{Argv: argv}
	}
	argv = append(argv, "--message-format=json", "--")
	argv = append(argv, "--show-output", "-Z", "unstable-options", "--format=json")
	argv = append(argv, clientArgs...)
	return commandSpec{Argv: argv}
}

// workspaceCheckArgs builds the workspace/check-wide sanity build used to
// validate the whole tree without targeting individual packages.
func workspaceCheckArgs() commandSpec {
	return commandSpec{
		Argv: []string{"cargo", "check", "--message-format=json", "--workspace", "--all-targets", "-Z", "unstable-options", "--keep-going"},
		Env:  []string{"RUSTC_BOOTSTRAP=1"},
	}
}

func targetSelector(target *workspace.Target) []string {
	if target == nil {
		return nil
	}
	switch target.Kind {
	case workspace.KindBin:
		return []string{"--bin", target.Name}
	case workspace.KindExample:
		return []string{"--example", target.Name}
	case workspace.KindLib:
		return []string{"--lib"}
	case workspace.KindTest:
		return []string{"--test", target.Name}
	case workspace.KindBench:
		return []string{"--bench", target.Name}
	default:
		return nil
	}
}

func featureFlags(features []string, defaultFeaturesDisabled bool) []string {
	var flags []string
	if len(features) > 0 {
		flags = append(flags, "--features", joinComma(features))
	}
	if defaultFeaturesDisabled {
		flags = append(flags, "--no-default-features")
	}
	return flags
}

func joinComma(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out
}
