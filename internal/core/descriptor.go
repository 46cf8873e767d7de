package core

import "strconv"

// Direction is the traversal direction of a hierarchy link.
type Direction int

const (
	// Descendants walks from a row to its children.
	Descendants Direction = iota
	// Ancestors walks from a row to its parent.
	Ancestors
)

func (d Direction) String() string {
	switch d {
	case Descendants:
		return "descendants"
	case Ancestors:
		return "ancestors"
	}
	return "Direction(" + strconv.Itoa(int(d)) + ")"
}

// Tree describes a self-referential table.
type Tree struct {
	Table string
	// Key is the primary key column. Defaults to "id".
	Key string
	// ParentKey references Key of the parent row. Defaults to "parent_id".
	ParentKey string
	// SoftDelete names a nullable deletion timestamp column. Deleted rows are
	// still traversed but removed from results unless trashed rows are
	// requested.
	SoftDelete string
}

func (t Tree) key() string {
	if t.Key == "" {
		return "id"
	}
	return t.Key
}

func (t Tree) parentKey() string {
	if t.ParentKey == "" {
		return "parent_id"
	}
	return t.ParentKey
}

type linkKind int

const (
	linkHasMany linkKind = iota
	linkHierarchy
)

// Link is one step of a relation chain: either a hierarchy traversal or a
// plain has-many join.
type Link struct {
	kind      linkKind
	tree      Tree
	direction Direction

	table      string
	foreignKey string
	localKey   string
	key        string
	softDelete string
}

// DescendantsOf links to all rows below the current one in tree.
func DescendantsOf(tree Tree) Link {
	return Link{kind: linkHierarchy, tree: tree, direction: Descendants}
}

// AncestorsOf links to all rows above the current one in tree. It is only
// valid as the first link of a chain.
func AncestorsOf(tree Tree) Link {
	return Link{kind: linkHierarchy, tree: tree, direction: Ancestors}
}

// HasMany links rows of the previous step to rows of table whose foreignKey
// equals the previous step's localKey. An empty localKey means "id".
//
// Example:
//
//	db.Relation(
//	    adjacency.DescendantsOf(users),
//	    adjacency.HasMany("posts", "user_id", "id"),
//	)
func HasMany(table, foreignKey, localKey string) Link {
	if localKey == "" {
		localKey = "id"
	}
	return Link{kind: linkHasMany, table: table, foreignKey: foreignKey, localKey: localKey}
}

// WithSoftDelete returns a copy of the link with a soft-delete column. For
// hierarchy links it sets the tree's column.
func (l Link) WithSoftDelete(column string) Link {
	if l.kind == linkHierarchy {
		l.tree.SoftDelete = column
	} else {
		l.softDelete = column
	}
	return l
}

// WithKey returns a copy of the has-many link with its primary key column,
// used when the linked rows are the update target. Defaults to "id".
func (l Link) WithKey(column string) Link {
	l.key = column
	return l
}

// Table returns the table the link leads to.
func (l Link) Table() string {
	if l.kind == linkHierarchy {
		return l.tree.Table
	}
	return l.table
}

// IsHierarchy reports whether the link traverses a tree.
func (l Link) IsHierarchy() bool { return l.kind == linkHierarchy }

func (l Link) pk() string {
	if l.kind == linkHierarchy {
		return l.tree.key()
	}
	if l.key == "" {
		return "id"
	}
	return l.key
}

// chain is a validated relation chain split around its hierarchy link.
type chain struct {
	leading  []Link
	tree     Tree
	dir      Direction
	trailing []Link
}

func newChain(links []Link) (chain, error) {
	var c chain
	if len(links) == 0 {
		return c, configErrorf("relation needs at least one link")
	}

	hierarchy := -1
	for i, l := range links {
		if !l.IsHierarchy() {
			continue
		}
		if hierarchy >= 0 {
			return c, configErrorf("relation chain can hold only one hierarchy link")
		}
		hierarchy = i
	}
	if hierarchy < 0 {
		return c, configErrorf("relation chain needs a hierarchy link")
	}
	if links[hierarchy].direction == Ancestors && hierarchy != 0 {
		return c, configErrorf("ancestors can only be at the beginning of deep relationships")
	}

	c.leading = links[:hierarchy:hierarchy]
	c.tree = links[hierarchy].tree
	c.dir = links[hierarchy].direction
	c.trailing = links[hierarchy+1:]

	if c.tree.Table == "" {
		return c, configErrorf("hierarchy link needs a table")
	}
	if n := len(c.leading); n > 0 && c.leading[n-1].table != c.tree.Table {
		return c, configErrorf("link before the hierarchy must lead to %q, got %q", c.tree.Table, c.leading[n-1].table)
	}

	seen := map[string]bool{cteName: true}
	for _, l := range c.trailing {
		if seen[l.table] {
			return c, configErrorf("table %q appears twice after the hierarchy link", l.table)
		}
		seen[l.table] = true
	}

	return c, c.validate()
}

func (c chain) validate() error {
	names := []string{c.tree.Table, c.tree.key(), c.tree.parentKey()}
	if c.tree.SoftDelete != "" {
		names = append(names, c.tree.SoftDelete)
	}
	for _, l := range append(append([]Link(nil), c.leading...), c.trailing...) {
		if l.table == "" || l.foreignKey == "" {
			return configErrorf("has-many link needs a table and a foreign key")
		}
		names = append(names, l.table, l.foreignKey, l.localKey, l.pk())
		if l.softDelete != "" {
			names = append(names, l.softDelete)
		}
	}
	for _, name := range names {
		if err := validator.ValidateIdentifier(name); err != nil {
			return configErrorf("relation chain: %v", err)
		}
	}
	return nil
}

// ownerKey is the owner column the chain correlates to.
func (c chain) ownerKey() string {
	if len(c.leading) > 0 {
		return c.leading[0].localKey
	}
	return c.tree.key()
}

// targetTable is the table the relation returns rows of.
func (c chain) targetTable() string {
	if n := len(c.trailing); n > 0 {
		return c.trailing[n-1].table
	}
	return c.tree.Table
}

// targetKey is the primary key column of targetTable.
func (c chain) targetKey() string {
	if n := len(c.trailing); n > 0 {
		return c.trailing[n-1].pk()
	}
	return c.tree.key()
}

func (c chain) deep() bool { return len(c.trailing) > 0 }
