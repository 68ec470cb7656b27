package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPosRoundtrip(t *testing.T) {
	cases := []struct {
		line, col int
	}{
		{1, 1},
		{1, 80},
		{42, 1},
		{1234, 567},
		{MaxLines, MaxCols},
	}
	for _, c := range cases {
		p := MakePos(c.line, c.col)
		l, col := p.LineCol()
		require.Equal(t, c.line, l)
		require.Equal(t, c.col, col)
		require.False(t, p.Unknown())
	}
}

func TestPosUnknown(t *testing.T) {
	require.True(t, Pos(0).Unknown())
	require.True(t, MakePos(0, 3).Unknown())
	require.True(t, MakePos(3, 0).Unknown())
	require.Equal(t, "-", Pos(0).String())
	require.Equal(t, "3:4", MakePos(3, 4).String())
}

func TestToPosition(t *testing.T) {
	pos := MakePos(12, 34).ToPosition("some/file.lama")
	require.Equal(t, "some/file.lama", pos.Filename)
	require.Equal(t, 12, pos.Line)
	require.Equal(t, 34, pos.Column)
}
