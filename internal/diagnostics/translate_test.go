package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

func label(s string) *string { return &s }

func TestTranslatePrimarySpanProducesOnePublicationPerFile(t *testing.T) {
	diag := RustcDiagnostic{
		Message: "mismatched types",
		Level:   "error",
		Code:    &RustcCode{Code: "E0308"},
		Spans: []RustcSpan{
			{FileName: "src/main.rs", LineStart: 3, LineEnd: 3, ColumnStart: 5, ColumnEnd: 8, IsPrimary: true},
		},
	}
	target := bsp.BuildTargetIdentifier{URI: "file:///repo/Cargo.toml"}

	pubs, global := Translate(diag, "o1", target, "/repo")
	require.Nil(t, global)
	require.Len(t, pubs, 1)
	assert.Equal(t, bsp.URI("file:///repo/src/main.rs"), pubs[0].TextDocument.URI)
	require.Len(t, pubs[0].Diagnostics, 1)
	d := pubs[0].Diagnostics[0]
	assert.Equal(t, bsp.SeverityError, d.Severity)
	assert.Equal(t, "E0308", d.Code)
	assert.Equal(t, "cargo", d.Source)
	assert.NotNil(t, d.CodeDescription)
	assert.Equal(t, "o1", pubs[0].OriginId)
	assert.False(t, pubs[0].Reset)
}

func TestTranslateNoPrimarySpanYieldsGlobalMessage(t *testing.T) {
	diag := RustcDiagnostic{Message: "linking failed", Level: "error"}
	target := bsp.BuildTargetIdentifier{URI: "file:///repo/Cargo.toml"}

	pubs, global := Translate(diag, "", target, "/repo")
	assert.Nil(t, pubs)
	require.NotNil(t, global)
	assert.Equal(t, bsp.MessageError, global.Type)
	assert.Equal(t, "linking failed", global.Message)
}

func TestTranslateUnknownLevelDropsDiagnostic(t *testing.T) {
	diag := RustcDiagnostic{Message: "ignored", Level: "something-unrecognized"}
	target := bsp.BuildTargetIdentifier{URI: "file:///repo/Cargo.toml"}

	pubs, global := Translate(diag, "", target, "/repo")
	assert.Nil(t, pubs)
	assert.Nil(t, global)
}

func TestTranslateUnusedVariableGetsUnnecessaryTag(t *testing.T) {
	diag := RustcDiagnostic{
		Message: "unused variable: `x`",
		Level:   "warning",
		Code:    &RustcCode{Code: "unused_variables"},
		Spans: []RustcSpan{
			{FileName: "src/lib.rs", LineStart: 1, LineEnd: 1, ColumnStart: 1, ColumnEnd: 2, IsPrimary: true},
		},
	}
	target := bsp.BuildTargetIdentifier{URI: "file:///repo/Cargo.toml"}

	pubs, _ := Translate(diag, "", target, "/repo")
	require.Len(t, pubs, 1)
	require.Len(t, pubs[0].Diagnostics, 1)
	assert.Contains(t, pubs[0].Diagnostics[0].Tags, bsp.TagUnnecessary)
}

func TestTranslateTwoPrimarySpansOverTwoFilesCoversBoth(t *testing.T) {
	diag := RustcDiagnostic{
		Message: "duplicate definitions",
		Level:   "error",
		Spans: []RustcSpan{
			{FileName: "src/a.rs", LineStart: 1, LineEnd: 1, ColumnStart: 1, ColumnEnd: 2, IsPrimary: true, Label: label("first")},
			{FileName: "src/b.rs", LineStart: 2, LineEnd: 2, ColumnStart: 1, ColumnEnd: 2, IsPrimary: true, Label: label("second")},
		},
	}
	target := bsp.BuildTargetIdentifier{URI: "file:///repo/Cargo.toml"}

	pubs, global := Translate(diag, "", target, "/repo")
	require.Nil(t, global)
	require.Len(t, pubs, 2)
	files := map[bsp.URI]bool{}
	for _, p := range pubs {
		files[p.TextDocument.URI] = true
	}
	assert.True(t, files["file:///repo/src/a.rs"])
	assert.True(t, files["file:///repo/src/b.rs"])
}

func TestSpanRangeConvertsOneBasedToZeroBased(t *testing.T) {
	r := spanRange(RustcSpan{LineStart: 5, LineEnd: 5, ColumnStart: 3, ColumnEnd: 9})
	assert.Equal(t, 4, r.Start.Line)
	assert.Equal(t, 2, r.Start.Character)
	assert.Equal(t, 4, r.End.Line)
	assert.Equal(t, 8, r.End.Character)
}

func TestIsDummyFile(t *testing.T) {
	assert.True(t, isDummyFile("<::core::macros::panic macros>"))
	assert.False(t, isDummyFile("src/main.rs"))
}
