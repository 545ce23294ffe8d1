package asm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLabelSplitsLiteralAndParameterSpans(t *testing.T) {
	label, err := ParseLabel("loop_{n}_end")
	require.NoError(t, err)
	require.Equal(t, []LabelComponent{
		{Text: "loop_"},
		{Parameter: true, Text: "n"},
		{Text: "_end"},
	}, label.Components)
}

func TestParseLabelRejectsUnterminatedPlaceholder(t *testing.T) {
	_, err := ParseLabel("bad{oops")
	require.Error(t, err)
}

// TestLabelRenderIsPure covers property 8: render(label, env1) = render(label,
// env2) whenever env1 and env2 agree on every placeholder the label uses.
func TestLabelRenderIsPure(t *testing.T) {
	label, err := ParseLabel("v_{a}_{b}")
	require.NoError(t, err)

	env1 := map[string]string{"a": "1", "b": "2", "unrelated": "x"}
	env2 := map[string]string{"a": "1", "b": "2"}

	r1, err := label.Render(env1)
	require.NoError(t, err)
	r2, err := label.Render(env2)
	require.NoError(t, err)
	require.Equal(t, r1, r2)
	require.Equal(t, "v_1_2", r1)
}

func TestLabelRenderFailsOnMissingPlaceholder(t *testing.T) {
	label, err := ParseLabel("{missing}")
	require.NoError(t, err)
	_, err = label.Render(nil)
	require.Error(t, err)
}

func TestParseCommandRecognisesEveryMarker(t *testing.T) {
	cases := map[string]Marker{
		">routine":  MarkerRoutineCallLocal,
		"<routine":  MarkerRoutineCallExported,
		"$routine":  MarkerRoutineAddressLocal,
		"@routine":  MarkerRoutineAddressExported,
		"'param":    MarkerParameterUse,
		"~macro":    MarkerMacroUse,
		"#anchor":   MarkerAnchorDef,
		"*anchor":   MarkerAnchorAddressAbsolute,
		"&anchor":   MarkerAnchorAddressRelative,
	}
	for text, want := range cases {
		cmd, ok, err := ParseCommand(text)
		require.NoError(t, err)
		require.True(t, ok, "expected %q to parse as a command", text)
		require.Equal(t, want, cmd.Marker)
	}
}

func TestParseCommandRejectsPlainText(t *testing.T) {
	_, ok, err := ParseCommand("plaintext")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseNumberChoosesNarrowestWidth(t *testing.T) {
	cases := []struct {
		text  string
		width NumberWidth
		value uint64
	}{
		{"0", WidthByte, 0},
		{"255", WidthByte, 255},
		{"256", WidthShort, 256},
		{"65535", WidthShort, 65535},
		{"65536", WidthInt, 65536},
		{"0xFF", WidthByte, 255},
		{"0x1F4", WidthShort, 500},
	}
	for _, c := range cases {
		n, ok, err := parseNumber(c.text)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, c.width, n.Width, "width for %q", c.text)
		require.Equal(t, c.value, n.Value, "value for %q", c.text)
	}
}

func TestParseNumberRejectsNonNumeric(t *testing.T) {
	_, ok, err := parseNumber("not_a_number")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNumberLiteralBytesPrefixesOpcodeForWidth(t *testing.T) {
	n := NumberLiteral{Width: WidthShort, Value: 0x1234}
	require.Equal(t, []byte{0xB1, 0x34, 0x12}, n.Bytes())
}

func TestParsePathRequiresLeadingDot(t *testing.T) {
	_, err := ParsePath("no.leading.dot")
	require.Error(t, err)

	p, err := ParsePath(".a.b.c")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, p.Names)
}

func TestValidateStringLiteralRejectsReservedRunes(t *testing.T) {
	require.NoError(t, validateStringLiteral("plain_name"))
	require.Error(t, validateStringLiteral("has;semicolon"))
}
