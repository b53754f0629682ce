// Package chunker 将长文本切分为带重叠的切块。
//
// 切块长度按 rune 计算。相邻切块恰好共享 overlap 个 rune：
// 前一块的末尾 overlap 个字符与后一块的开头 overlap 个字符相同，
// 因此去掉每个后续切块的前 overlap 个字符再拼接即可还原原文。
// 切分点优先落在段落、换行、句子、单词边界上，找不到时按字符硬切。
package chunker

import (
	"strings"

	apperrors "scribe-eye-go/pkg/errors"
)

// separators 按优先级排列，切分点落在分隔符之后。
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune("。"),
	[]rune(" "),
}

// Chunk 是切分产生的临时片段，不单独持久化。
type Chunk struct {
	Text    string
	Ordinal int
}

// Splitter 持有一组已校验过的切分参数。
type Splitter struct {
	maxSize int
	overlap int
}

// New 创建 Splitter，要求 0 < overlap < maxSize。
func New(maxSize, overlap int) (*Splitter, error) {
	if err := validate(maxSize, overlap); err != nil {
		return nil, err
	}
	return &Splitter{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize 返回单个切块的最大 rune 数。
func (s *Splitter) MaxSize() int { return s.maxSize }

// Overlap 返回相邻切块共享的 rune 数。
func (s *Splitter) Overlap() int { return s.overlap }

// Split 切分文本并附带序号。
func (s *Splitter) Split(text string) []Chunk {
	parts := split([]rune(text), s.maxSize, s.overlap)
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Text: p, Ordinal: i}
	}
	return chunks
}

// Split 按 maxSize/overlap 切分文本。空文本或纯空白文本返回空序列。
func Split(text string, maxSize, overlap int) ([]string, error) {
	if err := validate(maxSize, overlap); err != nil {
		return nil, err
	}
	return split([]rune(text), maxSize, overlap), nil
}

func validate(maxSize, overlap int) error {
	if overlap <= 0 || maxSize <= overlap {
		return apperrors.Newf(apperrors.ErrInvalidParameter,
			"invalid chunk parameters: need 0 < overlap < max_size, got max_size=%d overlap=%d", maxSize, overlap)
	}
	return nil
}

func split(runes []rune, maxSize, overlap int) []string {
	if strings.TrimSpace(string(runes)) == "" {
		return nil
	}

	n := len(runes)
	var chunks []string
	start := 0
	for {
		end := start + maxSize
		if end >= n {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		cut := findCut(runes, start, end, maxSize, overlap)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut - overlap
	}
}

// findCut 在 (start, end] 中寻找切分点。切分点至少为 start+overlap+1 以保证前进，
// 且不早于窗口中点，避免产生过碎的切块。
func findCut(runes []rune, start, end, maxSize, overlap int) int {
	minCut := start + overlap + 1
	if half := start + maxSize/2; half > minCut {
		minCut = half
	}

	for _, sep := range separators {
		for i := end - len(sep); i >= start; i-- {
			cut := i + len(sep)
			if cut < minCut {
				break
			}
			if hasPrefixAt(runes, i, sep) {
				return cut
			}
		}
	}
	return end
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
