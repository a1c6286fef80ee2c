// Package summarizer 把跌倒事件转换为分类器使用的文本描述
package summarizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"wisefido-fall/internal/models"
)

// Summarize 生成事件描述
//
// 基本句式固定，时间保留两位小数；有姿态信息时追加速度和落点，有上下文时追加击打次数。
// 相同事件总是得到相同文本（分类缓存以文本哈希为键）。
func Summarize(ev models.FallEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The fighter falls at %ss and stays grounded until %ss for %s seconds.",
		formatRounded(ev.StartTime), formatRounded(ev.EndTime), formatRounded(ev.Duration()))

	if info := ev.PoseInfo; info != nil {
		var details []string
		details = append(details, fmt.Sprintf("fall velocity is estimated at %.2f", info.FallVelocity))
		if info.ImpactLocation != "" {
			details = append(details, "impact seems to occur at "+info.ImpactLocation)
		}
		b.WriteString(" " + strings.Join(details, ", ") + ".")

		if info.ContextStrikes != nil && *info.ContextStrikes > 0 && info.ContextFrames != nil {
			fmt.Fprintf(&b, " The fall is preceded by %d strike(s) within the prior %d frames.",
				*info.ContextStrikes, *info.ContextFrames)
		}
	}
	return b.String()
}

// formatRounded 两位小数四舍五入，整数保留 ".0"
func formatRounded(v float64) string {
	r := math.Round(v*100) / 100
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
