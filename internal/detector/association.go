package detector

import (
	"fmt"
	"math"

	"wisefido-fall/internal/models"
)

// Associator 帧间身份关联策略
// Associate 返回 assignments[i] = 上一帧的索引（当前帧第 i 个人），-1 表示新建 track
type Associator interface {
	Associate(prev, curr []models.Point) []int
}

// NewAssociator 按名称创建关联策略（"greedy" 或 "optimal"）
func NewAssociator(name string) (Associator, error) {
	switch name {
	case "", "greedy":
		return GreedyAssociator{}, nil
	case "optimal":
		return OptimalAssociator{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown association strategy %q", ErrInvalidParams, name)
	}
}

// GreedyAssociator 贪心最近邻匹配
// 按当前帧顺序，每个人认领距离最近且尚未被认领的上一帧人物；距离相同时取索引较小者
type GreedyAssociator struct{}

// Associate 实现 Associator
func (GreedyAssociator) Associate(prev, curr []models.Point) []int {
	assignments := make([]int, len(curr))
	used := make([]bool, len(prev))

	for i, c := range curr {
		best := -1
		bestDist := math.Inf(1)
		for j, p := range prev {
			if used[j] {
				continue
			}
			if d := distance(c, p); d < bestDist {
				bestDist = d
				best = j
			}
		}
		if best >= 0 {
			used[best] = true
		}
		assignments[i] = best
	}
	return assignments
}

// OptimalAssociator 全局最优匹配（Kuhn-Munkres），总距离最小
type OptimalAssociator struct{}

// Associate 实现 Associator
func (OptimalAssociator) Associate(prev, curr []models.Point) []int {
	cost := make([][]float64, len(curr))
	for i, c := range curr {
		cost[i] = make([]float64, len(prev))
		for j, p := range prev {
			cost[i][j] = distance(c, p)
		}
	}
	return hungarianAssign(cost, len(curr), len(prev))
}

// hungarianPad 填充行列的代价；任一完整指派使用的填充格数量相同，取 0 以避免精度损失
const hungarianPad = 0.0

// hungarianAssign 求解 n×m 的矩形指派问题（带势函数的 Jonker-Volgenant 写法）
// n > m 时多出的行不分配（-1）
func hungarianAssign(cost [][]float64, n, m int) []int {
	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	if n == 0 || m == 0 {
		return result
	}

	dim := n
	if m > dim {
		dim = m
	}
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m {
				c[i][j] = cost[i][j]
			} else {
				c[i][j] = hungarianPad
			}
		}
	}

	// 内部使用 1 起始的下标
	const inf = math.MaxFloat64 / 2
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1)   // p[j] = 分配给列 j 的行
	way := make([]int, dim+1) // 增广路径上的前驱列
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	for j := 1; j <= dim; j++ {
		row, col := p[j]-1, j-1
		if row >= 0 && row < n && col < m {
			result[row] = col
		}
	}
	return result
}
