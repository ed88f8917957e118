package mesh

import "strings"

// Node ids follow {shortname}.{area}.{domain}, e.g. "rep01.ip3.ipnt.uk".

// SplitID breaks a full node id into its short name, area and domain parts.
func SplitID(id string) (short, area, domain string, ok bool) {
	parts := strings.SplitN(id, ".", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// FullID assembles a full node id from its parts.
func FullID(short, area, domain string) string {
	return short + "." + area + "." + domain
}

// DetailPath builds the site path for a node's detail view. Falls back to the
// raw id when it does not follow the short.area.domain format.
func DetailPath(n Node) string {
	short, area, _, ok := SplitID(n.ID)
	if !ok {
		return "/nodes/" + n.ID
	}
	return "/nodes/" + area + "/" + short
}

// FindNode locates a node by area and short id. Accepts either the assembled
// full id or a record whose id already equals the short form.
func FindNode(nodes []Node, area, short, domain string) (Node, bool) {
	fullID := FullID(short, area, domain)
	for _, n := range nodes {
		if n.ID == fullID || n.ID == short {
			return n, true
		}
	}
	return Node{}, false
}

// FindNodeByPublicKey locates a node by its mesh public key.
func FindNodeByPublicKey(nodes []Node, publicKey string) (Node, bool) {
	if publicKey == "" {
		return Node{}, false
	}
	for _, n := range nodes {
		if n.PublicKey == publicKey {
			return n, true
		}
	}
	return Node{}, false
}
