package workspace

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

// RustToolchainResult answers buildTarget/rustToolchain: the sysroot, the
// proc-macro server path, and the rustc cfg options a client needs to
// drive its own semantic analysis without reinvoking Cargo. This shells
// out directly to rustc rather than going through cargo metadata, since
// none of that information is part of cargo metadata's output.
func RustToolchainResult(rustcBin string) (bsp.RustToolchainResult, error) {
	if rustcBin == "" {
		rustcBin = "rustc"
	}

	sysroot, err := rustcPrint(rustcBin, "sysroot")
	if err != nil {
		return bsp.RustToolchainResult{}, fmt.Errorf("workspace: rustc sysroot: %w", err)
	}

	cfgOut, err := rustcPrintMulti(rustcBin, "cfg")
	if err != nil {
		return bsp.RustToolchainResult{}, fmt.Errorf("workspace: rustc cfg: %w", err)
	}

	sysrootSrc := filepath.Join(sysroot, "lib", "rustlib", "src", "rust", "library")
	procMacroSrv := filepath.Join(sysroot, "libexec", "rust-analyzer-proc-macro-srv")

	return bsp.RustToolchainResult{
		RustC:            rustcBin,
		CargoBinPath:     "cargo",
		ProcMacroSrvPath: procMacroSrv,
		Sysroot:          sysroot,
		SysrootSrc:       sysrootSrc,
		CfgOptions:       cfgOut,
	}, nil
}

func rustcPrint(bin, what string) (string, error) {
	out, err := exec.Command(bin, "--print", what).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func rustcPrintMulti(bin, what string) ([]string, error) {
	out, err := exec.Command(bin, "--print", what).Output()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
