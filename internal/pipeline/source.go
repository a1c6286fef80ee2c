package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"wisefido-fall/internal/models"
)

// FrameSource 按帧序号递增产出帧消息，结束时返回 io.EOF
type FrameSource interface {
	Next(ctx context.Context) (*models.FrameMessage, error)
}

// maxLineSize 单行帧消息的最大长度（33 个关键点 × 多人）
const maxLineSize = 4 << 20

// JSONLinesSource 每行一条帧消息，空行跳过
type JSONLinesSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewJSONLinesSource 从 r 读取 JSON-lines
func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &JSONLinesSource{scanner: scanner}
}

// Next 实现 FrameSource
func (s *JSONLinesSource) Next(ctx context.Context) (*models.FrameMessage, error) {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.line++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := models.ParseFrameMessage(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", s.line, err)
		}
		return msg, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	return nil, io.EOF
}

// SliceSource 内存中的帧序列
type SliceSource struct {
	frames []*models.FrameMessage
	pos    int
}

// NewSliceSource 创建内存帧源
func NewSliceSource(frames []*models.FrameMessage) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next 实现 FrameSource
func (s *SliceSource) Next(ctx context.Context) (*models.FrameMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	msg := s.frames[s.pos]
	s.pos++
	return msg, nil
}
