package semnet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"noesis/internal/txt"
)

// Graphlet element text format:
//
//	kind-id
//	      -lex-  word
//	      -str-  literal
//	      -neg-  1
//	      -ach-  1
//	      -ext-  0
//	      -blf-  0.900
//	      -tag-  NOUN VERB
//	      -slot-> kind-id
//
// A block starts with a "kind-id" header (halo ids print as "kind+id") and
// continues with indented lines starting with '-'. Node names act as labels
// within one load: the same nickname always yields the same node, with ids
// renumbered by the receiving pool.

// ClrTrans resets the name translation table used while loading.
func (p *Pool) ClrTrans() {
	p.trans = make(map[string]*Node)
}

// findTrans returns the node for a file-local nickname, creating it (with a
// fresh id) on first sight.
func (p *Pool) findTrans(name string, tru int) *Node {
	if p.trans == nil {
		p.trans = make(map[string]*Node)
	}
	if n, ok := p.trans[name]; ok {
		return n
	}
	kind, _, ok := ParseName(name)
	if !ok {
		return nil
	}
	n := p.createNode(kind, 0)
	if tru > 0 {
		n.blf = n.blf0
	}
	p.trans[name] = n
	return n
}

// looksLikeNode reports whether a token could head a graphlet block.
func looksLikeNode(tok string) bool {
	_, _, ok := ParseName(tok)
	return ok
}

// LoadGraph reads graphlet blocks from the reader into g, creating nodes in
// this pool. Reading stops at the first line that is neither a node header
// nor an attribute/arrow line; that line is left unconsumed. With tru > 0
// loaded beliefs are actualized immediately. Arrow targets first named in
// this block (with no header of their own) are appended to g after the
// headers. Returns the number of nodes added to g, negative on syntax error.
func (p *Pool) LoadGraph(g *Graphlet, in *txt.LineReader, tru int) int {
	old := p.BuildIn(nil)
	defer p.BuildIn(old)

	seen := make(map[*Node]bool, len(p.trans))
	for _, n := range p.trans {
		seen[n] = true
	}
	start := g.NumItems()
	var topic *Node
	cnt := 0
	for {
		ln, ok := in.Next(false)
		if !ok {
			break
		}
		if ln == "" {
			break
		}
		if strings.HasPrefix(ln, "-----") {
			break // section separator, not a field
		}
		if strings.HasPrefix(ln, "-") {
			// attribute or arrow for current topic
			if topic == nil {
				return -1
			}
			if p.parseField(topic, ln, tru) <= 0 {
				return -1
			}
			in.Flush()
			continue
		}
		// possible new topic header
		fields := strings.Fields(ln)
		if len(fields) == 0 || !looksLikeNode(fields[0]) {
			break // not part of the graphlet
		}
		topic = p.findTrans(fields[0], tru)
		if topic == nil {
			return -1
		}
		if g.AddItem(topic) == nil {
			return -1
		}
		cnt++
		// remainder of header line may hold the first field
		rest := strings.TrimSpace(strings.TrimPrefix(ln, fields[0]))
		if rest != "" {
			if p.parseField(topic, rest, tru) <= 0 {
				return -1
			}
		}
		in.Flush()
	}
	for i := start; i < g.NumItems(); i++ {
		for j := 0; j < g.Item(i).NumArgs(); j++ {
			if v := g.Item(i).Arg(j); !seen[v] && !g.InDesc(v) {
				if g.AddItem(v) == nil {
					return -1
				}
				cnt++
			}
		}
	}
	return cnt
}

// parseField handles one "-lex- word" or "-slot-> kind-id" fragment.
func (p *Pool) parseField(topic *Node, frag string, tru int) int {
	frag = strings.TrimSpace(frag)
	if !strings.HasPrefix(frag, "-") {
		return 0
	}
	body := frag[1:]
	end := strings.IndexByte(body, '-')
	if end < 0 {
		return 0
	}
	label := body[:end]
	rest := body[end:]

	// arrow form has dash padding ending in '>'
	if i := strings.IndexByte(rest, '>'); i >= 0 && strings.Trim(rest[:i], "-") == "" {
		target := strings.TrimSpace(rest[i+1:])
		val := p.findTrans(target, tru)
		if val == nil {
			return 0
		}
		if err := topic.AddArg(label, val); err != nil {
			return 0
		}
		return 1
	}

	value := strings.TrimSpace(strings.TrimPrefix(rest, "-"))
	switch label {
	case "lex":
		p.SetLex(topic, value)
	case "str":
		topic.SetString(value)
	case "neg":
		v, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		topic.SetNeg(v)
	case "ach":
		v, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		topic.SetDone(v)
	case "ext":
		v, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		topic.Reveal(v)
	case "blf":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		topic.SetDefault(v)
		if tru > 0 {
			topic.TmpBelief(v)
		}
	case "tag":
		for _, t := range strings.Fields(value) {
			switch t {
			case "NOUN":
				topic.Tags |= TagNoun
			case "VERB":
				topic.Tags |= TagVerb
			case "ADJ":
				topic.Tags |= TagAdj
			}
		}
	default:
		return 0
	}
	return 1
}

///////////////////////////////////////////////////////////////////////////
//                           Writing functions                           //
///////////////////////////////////////////////////////////////////////////

// SaveGraph writes all blocks of a graphlet. Indent prefixes every line;
// detail >= 1 includes beliefs, detail >= 2 includes tags.
func SaveGraph(w io.Writer, g *Graphlet, indent int, detail int) error {
	for i := 0; i < g.NumItems(); i++ {
		if err := SaveNode(w, g.Item(i), g, indent, detail); err != nil {
			return err
		}
	}
	return nil
}

// SaveNode writes one node block, restricting arrows to targets inside acc
// or object nodes (nil allows all).
func SaveNode(w io.Writer, n *Node, acc *Graphlet, indent int, detail int) error {
	pre := strings.Repeat(" ", indent)
	head := n.Nick()
	cont := pre + strings.Repeat(" ", len(head))
	first := true

	field := func(body string) error {
		var err error
		if first {
			_, err = fmt.Fprintf(w, "%s%s %s\n", pre, head, body)
			first = false
		} else {
			_, err = fmt.Fprintf(w, "%s %s\n", cont, body)
		}
		return err
	}

	if n.Lex() != "" {
		if err := field(fmt.Sprintf("-lex-  %s", n.Lex())); err != nil {
			return err
		}
	}
	if n.Literal() != "" {
		if err := field(fmt.Sprintf("-str-  %s", n.Literal())); err != nil {
			return err
		}
	}
	if n.Neg() != 0 {
		if err := field(fmt.Sprintf("-neg-  %d", n.Neg())); err != nil {
			return err
		}
	}
	if n.Done() != 0 {
		if err := field(fmt.Sprintf("-ach-  %d", n.Done())); err != nil {
			return err
		}
	}
	if !n.Visible() {
		if err := field("-ext-  0"); err != nil {
			return err
		}
	}
	if detail >= 1 && n.Default() != 1.0 && n.Default() != 0.0 {
		if err := field(fmt.Sprintf("-blf-  %5.3f", n.Default())); err != nil {
			return err
		}
	}
	if detail >= 2 && n.Tags != 0 {
		var tags []string
		if n.Tags&TagNoun != 0 {
			tags = append(tags, "NOUN")
		}
		if n.Tags&TagVerb != 0 {
			tags = append(tags, "VERB")
		}
		if n.Tags&TagAdj != 0 {
			tags = append(tags, "ADJ")
		}
		if err := field("-tag-  " + strings.Join(tags, " ")); err != nil {
			return err
		}
	}
	for i := 0; i < n.NumArgs(); i++ {
		val := n.Arg(i)
		if acc != nil && !acc.InDesc(val) && !val.ObjNode() {
			continue
		}
		slot := n.Slot(i)
		pad := strings.Repeat("-", maxInt(1, 4-len(slot)))
		if err := field(fmt.Sprintf("-%s%s> %s", slot, pad, val.Nick())); err != nil {
			return err
		}
	}
	if first {
		// bare node with no fields at all
		if _, err := fmt.Fprintf(w, "%s%s\n", pre, head); err != nil {
			return err
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
