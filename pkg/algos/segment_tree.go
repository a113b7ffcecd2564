// Package algos - 线段树（Segment Tree）数据结构
package algos

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SumSegmentTree 区间和线段树
// 用于高效地处理区间求和与点更新问题
// 时间复杂度：构建 O(n)，查询 O(log n)，更新 O(log n)
type SumSegmentTree struct {
	tree []decimal.Decimal
	n    int
}

// NewSumSegmentTree 创建区间和线段树
func NewSumSegmentTree(arr []decimal.Decimal) *SumSegmentTree {
	n := len(arr)
	st := &SumSegmentTree{
		tree: make([]decimal.Decimal, 4*n),
		n:    n,
	}
	if n > 0 {
		st.build(arr, 0, 0, n-1)
	}
	return st
}

func (st *SumSegmentTree) build(arr []decimal.Decimal, node, start, end int) {
	if start == end {
		st.tree[node] = arr[start]
		return
	}
	mid := (start + end) / 2
	left, right := 2*node+1, 2*node+2
	st.build(arr, left, start, mid)
	st.build(arr, right, mid+1, end)
	st.tree[node] = st.tree[left].Add(st.tree[right])
}

// Update 更新指定位置的值
func (st *SumSegmentTree) Update(index int, value decimal.Decimal) error {
	if index < 0 || index >= st.n {
		return fmt.Errorf("index out of range")
	}
	st.update(0, 0, st.n-1, index, value)
	return nil
}

func (st *SumSegmentTree) update(node, start, end, index int, value decimal.Decimal) {
	if start == end {
		st.tree[node] = value
		return
	}
	mid := (start + end) / 2
	left, right := 2*node+1, 2*node+2
	if index <= mid {
		st.update(left, start, mid, index, value)
	} else {
		st.update(right, mid+1, end, index, value)
	}
	st.tree[node] = st.tree[left].Add(st.tree[right])
}

// Query 查询区间和
func (st *SumSegmentTree) Query(left, right int) (decimal.Decimal, error) {
	if left < 0 || right >= st.n || left > right {
		return decimal.Zero, fmt.Errorf("invalid range")
	}
	return st.query(0, 0, st.n-1, left, right), nil
}

func (st *SumSegmentTree) query(node, start, end, left, right int) decimal.Decimal {
	if right < start || end < left {
		return decimal.Zero
	}
	if left <= start && end <= right {
		return st.tree[node]
	}
	mid := (start + end) / 2
	l := st.query(2*node+1, start, mid, left, right)
	r := st.query(2*node+2, mid+1, end, left, right)
	return l.Add(r)
}

// ExtremumKind 极值线段树的种类
type ExtremumKind int

const (
	// MaxTree 区间最大值
	MaxTree ExtremumKind = iota
	// MinTree 区间最小值
	MinTree
)

// ExtremumSegmentTree 区间极值线段树（最大或最小）
type ExtremumSegmentTree struct {
	tree []decimal.Decimal
	n    int
	kind ExtremumKind
}

// NewExtremumSegmentTree 创建区间极值线段树
func NewExtremumSegmentTree(arr []decimal.Decimal, kind ExtremumKind) *ExtremumSegmentTree {
	n := len(arr)
	st := &ExtremumSegmentTree{
		tree: make([]decimal.Decimal, 4*n),
		n:    n,
		kind: kind,
	}
	if n > 0 {
		st.build(arr, 0, 0, n-1)
	}
	return st
}

func (st *ExtremumSegmentTree) pick(a, b decimal.Decimal) decimal.Decimal {
	if st.kind == MaxTree {
		if a.GreaterThan(b) {
			return a
		}
		return b
	}
	if a.LessThan(b) {
		return a
	}
	return b
}

// identity 返回查询越界区间时的中性元素
func (st *ExtremumSegmentTree) identity() decimal.Decimal {
	if st.kind == MaxTree {
		return decimal.New(-1, 18) // 远小于任何概率价格
	}
	return decimal.New(1, 18)
}

func (st *ExtremumSegmentTree) build(arr []decimal.Decimal, node, start, end int) {
	if start == end {
		st.tree[node] = arr[start]
		return
	}
	mid := (start + end) / 2
	left, right := 2*node+1, 2*node+2
	st.build(arr, left, start, mid)
	st.build(arr, right, mid+1, end)
	st.tree[node] = st.pick(st.tree[left], st.tree[right])
}

// Update 更新指定位置的值
func (st *ExtremumSegmentTree) Update(index int, value decimal.Decimal) error {
	if index < 0 || index >= st.n {
		return fmt.Errorf("index out of range")
	}
	st.update(0, 0, st.n-1, index, value)
	return nil
}

func (st *ExtremumSegmentTree) update(node, start, end, index int, value decimal.Decimal) {
	if start == end {
		st.tree[node] = value
		return
	}
	mid := (start + end) / 2
	left, right := 2*node+1, 2*node+2
	if index <= mid {
		st.update(left, start, mid, index, value)
	} else {
		st.update(right, mid+1, end, index, value)
	}
	st.tree[node] = st.pick(st.tree[left], st.tree[right])
}

// Query 查询区间极值
func (st *ExtremumSegmentTree) Query(left, right int) (decimal.Decimal, error) {
	if left < 0 || right >= st.n || left > right {
		return decimal.Zero, fmt.Errorf("invalid range")
	}
	return st.query(0, 0, st.n-1, left, right), nil
}

func (st *ExtremumSegmentTree) query(node, start, end, left, right int) decimal.Decimal {
	if right < start || end < left {
		return st.identity()
	}
	if left <= start && end <= right {
		return st.tree[node]
	}
	mid := (start + end) / 2
	l := st.query(2*node+1, start, mid, left, right)
	r := st.query(2*node+2, mid+1, end, left, right)
	return st.pick(l, r)
}
