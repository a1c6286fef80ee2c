package detector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams 参数不合法
	ErrInvalidParams = errors.New("invalid detector params")
	// ErrFinished 检测器已结束，不再接受新帧
	ErrFinished = errors.New("detector already finished")
	// ErrFrameOrder 帧序号未严格递增
	ErrFrameOrder = errors.New("frame index out of order")
)

// DataError 姿态数据缺少必需的关键点
type DataError struct {
	Landmark int // 缺失的关键点索引
	Length   int // 该姿态实际的关键点数量
}

func (e *DataError) Error() string {
	return fmt.Sprintf("pose is missing landmark %d (has %d keypoints)", e.Landmark, e.Length)
}
