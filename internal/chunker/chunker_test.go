package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "scribe-eye-go/pkg/errors"
)

const scene = `INT. OLD MILL - NIGHT

Rain hammers the roof. ALICE (30s) shakes water from her coat.

ALICE
You came. I wasn't sure you would.

BOB steps out of the shadows, lantern in hand. The wheel groans outside.

BOB
You said it was about the ledger. Is it?

Alice nods. She unfolds a damp sheet of paper and lays it on the millstone.
`

func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c)
			continue
		}
		b.WriteString(string([]rune(c)[overlap:]))
	}
	return b.String()
}

func TestSplit_EmptyAndWhitespace(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t "} {
		chunks, err := Split(in, 100, 10)
		require.NoError(t, err)
		assert.Empty(t, chunks, "input %q", in)
	}
}

func TestSplit_InvalidParameters(t *testing.T) {
	cases := []struct{ max, overlap int }{
		{10, 0},
		{10, 10},
		{10, 11},
		{0, 0},
		{10, -1},
	}
	for _, c := range cases {
		_, err := Split("some text", c.max, c.overlap)
		require.Error(t, err, "max=%d overlap=%d", c.max, c.overlap)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParameter))

		_, err = New(c.max, c.overlap)
		assert.Error(t, err)
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	text := "Alice meets Bob at the old mill during a storm."
	chunks, err := Split(text, 1000, 200)
	require.NoError(t, err)
	assert.Equal(t, []string{text}, chunks)
}

func TestSplit_Invariants(t *testing.T) {
	texts := []string{
		scene,
		strings.Repeat(scene, 7),
		strings.Repeat("x", 997),
		strings.Repeat("风雨交加的夜晚，爱丽丝在旧磨坊见到了鲍勃。", 40),
		strings.Repeat("word ", 300),
	}
	params := []struct{ max, overlap int }{
		{100, 20},
		{64, 63},
		{250, 1},
		{1000, 200},
	}

	for _, text := range texts {
		for _, p := range params {
			chunks, err := Split(text, p.max, p.overlap)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			for i, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), p.max, "chunk %d too long", i)
			}
			for i := 0; i+1 < len(chunks); i++ {
				cur := []rune(chunks[i])
				next := []rune(chunks[i+1])
				require.GreaterOrEqual(t, len(cur), p.overlap)
				require.GreaterOrEqual(t, len(next), p.overlap)
				assert.Equal(t, string(cur[len(cur)-p.overlap:]), string(next[:p.overlap]),
					"overlap mismatch between chunk %d and %d (max=%d overlap=%d)", i, i+1, p.max, p.overlap)
			}
			assert.Equal(t, text, reconstruct(chunks, p.overlap))

			again, err := Split(text, p.max, p.overlap)
			require.NoError(t, err)
			assert.Equal(t, chunks, again, "split must be deterministic")
		}
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)

	chunks, err := Split(text, 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 60)+"\n\n", chunks[0])
	assert.Equal(t, strings.Repeat("a", 8)+"\n\n"+strings.Repeat("b", 60), chunks[1])
}

func TestSplit_FallsBackToRawCut(t *testing.T) {
	chunks, err := Split(strings.Repeat("x", 250), 100, 20)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 90)
}

func TestSplitter_Ordinals(t *testing.T) {
	s, err := New(100, 20)
	require.NoError(t, err)
	assert.Equal(t, 100, s.MaxSize())
	assert.Equal(t, 20, s.Overlap())

	chunks := s.Split(strings.Repeat(scene, 3))
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
		assert.NotEmpty(t, c.Text)
	}
}
