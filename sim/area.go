// SPDX-License-Identifier: GPL-2.0-or-later

package sim

import (
	"slices"

	"netquake/edict"
	"netquake/math/vec"
)

const areaDepth = 4

// areaNode splits the world along the longer horizontal axis. Entities
// are linked into the deepest node that fully contains their box.
type areaNode struct {
	axis     int // -1 for leaf nodes
	dist     float32
	children [2]*areaNode
	triggers []int
	solids   []int
}

// Area finds the entities whose boxes overlap.
type Area struct {
	root  *areaNode
	where map[int]*areaNode
	boxes map[int]box
}

type box struct {
	min, max vec.Vec3
	trigger  bool
}

func (b box) overlaps(o box) bool {
	for i := 0; i < 3; i++ {
		if b.min[i] > o.max[i] || b.max[i] < o.min[i] {
			return false
		}
	}
	return true
}

// NewArea builds the node tree for a world of the given bounds.
func NewArea(mins, maxs vec.Vec3) *Area {
	return &Area{
		root:  createAreaNode(0, mins, maxs),
		where: make(map[int]*areaNode),
		boxes: make(map[int]box),
	}
}

func createAreaNode(depth int, mins, maxs vec.Vec3) *areaNode {
	if depth == areaDepth {
		return &areaNode{axis: -1}
	}
	an := &areaNode{}
	s := vec.Sub(maxs, mins)
	if s[0] > s[1] {
		an.axis = 0
	} else {
		an.axis = 1
	}
	an.dist = 0.5 * (maxs[an.axis] + mins[an.axis])

	mins1, maxs1 := mins, maxs
	mins2, maxs2 := mins, maxs
	maxs1[an.axis] = an.dist
	mins2[an.axis] = an.dist

	an.children[0] = createAreaNode(depth+1, mins2, maxs2)
	an.children[1] = createAreaNode(depth+1, mins1, maxs1)
	return an
}

// Unlink removes entity i.
func (a *Area) Unlink(i int) {
	n, ok := a.where[i]
	if !ok {
		return
	}
	n.triggers = slices.DeleteFunc(n.triggers, func(o int) bool { return o == i })
	n.solids = slices.DeleteFunc(n.solids, func(o int) bool { return o == i })
	delete(a.where, i)
	delete(a.boxes, i)
}

// Link needs to be called any time an entity changes origin or size.
// Items are touched as triggers and get a larger box to make them easier
// to pick up.
func (a *Area) Link(i int, e *edict.Edict, trigger bool) {
	a.Unlink(i)
	if i == 0 || e.Free {
		return // don't add the world
	}
	b := box{
		min:     vec.Add(e.Origin, e.Mins),
		max:     vec.Add(e.Origin, e.Maxs),
		trigger: trigger,
	}
	if e.Flags&edict.FlagItem != 0 {
		b.min[0] -= 15
		b.min[1] -= 15
		b.max[0] += 15
		b.max[1] += 15
	} else {
		// movement is clipped an epsilon away from an actual edge
		for j := 0; j < 3; j++ {
			b.min[j]--
			b.max[j]++
		}
	}

	node := a.root
	for node.axis != -1 {
		if b.min[node.axis] > node.dist {
			node = node.children[0]
		} else if b.max[node.axis] < node.dist {
			node = node.children[1]
		} else {
			break
		}
	}
	if trigger {
		node.triggers = append(node.triggers, i)
	} else {
		node.solids = append(node.solids, i)
	}
	a.where[i] = node
	a.boxes[i] = b
}

// Touching returns the triggers overlapping the box of linked entity i.
func (a *Area) Touching(i int) []int {
	b, ok := a.boxes[i]
	if !ok {
		return nil
	}
	var ret []int
	a.touching(i, b, a.root, &ret)
	return ret
}

func (a *Area) touching(i int, b box, n *areaNode, ret *[]int) {
	for _, t := range n.triggers {
		if t != i && b.overlaps(a.boxes[t]) {
			*ret = append(*ret, t)
		}
	}
	if n.axis == -1 {
		return
	}
	if b.max[n.axis] > n.dist {
		a.touching(i, b, n.children[0], ret)
	}
	if b.min[n.axis] < n.dist {
		a.touching(i, b, n.children[1], ret)
	}
}

// Linked reports whether entity i is in the tree.
func (a *Area) Linked(i int) bool {
	_, ok := a.where[i]
	return ok
}
