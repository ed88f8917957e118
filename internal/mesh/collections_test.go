package mesh

import "testing"

func baseCollections() Collections {
	return NewCollections(Dataset{
		Config:  SiteConfig{"site_name": "test"},
		Nodes:   []Node{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Members: []Member{{ID: "m1", Name: "Alice"}},
	})
}

func TestInsertNode_DuplicateID_LastWriterWins(t *testing.T) {
	c := baseCollections()

	updated := c.InsertNode(Node{ID: "a", Name: "A2"})

	if len(updated.Nodes) != 2 {
		t.Fatalf("expected insert on existing id not to grow the set, got %d nodes", len(updated.Nodes))
	}
	if updated.Nodes[0].Name != "A2" {
		t.Fatalf("expected new payload to win, got %s", updated.Nodes[0].Name)
	}
	// The original snapshot is untouched.
	if c.Nodes[0].Name != "A" {
		t.Fatalf("expected original snapshot unchanged, got %s", c.Nodes[0].Name)
	}
}

func TestUpdateNode_MissingID_IsNoOpNotInsert(t *testing.T) {
	c := baseCollections()

	updated, changed := c.UpdateNode(Node{ID: "ghost", Name: "Ghost"})

	if changed {
		t.Fatal("expected update of unknown id to report no change")
	}
	if len(updated.Nodes) != 2 {
		t.Fatalf("expected no implicit insert, got %d nodes", len(updated.Nodes))
	}
}

func TestDeleteNode(t *testing.T) {
	c := baseCollections()

	updated, changed := c.DeleteNode("a")
	if !changed || len(updated.Nodes) != 1 || updated.Nodes[0].ID != "b" {
		t.Fatalf("expected a to be removed, got changed=%v nodes=%v", changed, updated.Nodes)
	}

	_, changed = c.DeleteNode("ghost")
	if changed {
		t.Fatal("expected delete of unknown id to be a no-op")
	}
}

func TestMemberOperations(t *testing.T) {
	c := baseCollections()

	c2 := c.InsertMember(Member{ID: "m2", Name: "Bob"})
	if len(c2.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(c2.Members))
	}

	c3, changed := c2.UpdateMember(Member{ID: "m1", Name: "Alice B"})
	if !changed || c3.Members[0].Name != "Alice B" {
		t.Fatalf("expected member update applied, got changed=%v members=%v", changed, c3.Members)
	}

	c4, changed := c3.DeleteMember("m2")
	if !changed || len(c4.Members) != 1 {
		t.Fatalf("expected m2 removed, got changed=%v members=%v", changed, c4.Members)
	}
}

func TestDataset_NeverNil(t *testing.T) {
	d := Collections{}.Dataset()
	if d.Config == nil || d.Nodes == nil || d.Members == nil {
		t.Fatalf("expected non-nil collections in dataset, got %+v", d)
	}
}
