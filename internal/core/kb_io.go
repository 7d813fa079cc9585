package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"noesis/internal/logging"
	"noesis/internal/semnet"
	"noesis/internal/txt"
)

// Knowledge text formats:
//
//	RULE <id> - "gist"
//	  if:
//	    <graphlet>
//	  unless:          (0 or more)
//	    <graphlet>
//	  conf: 0.90       (optional, default 1.0)
//	  then:
//	    <graphlet>
//
//	OP <id> - "gist"
//	  trig:
//	    <directive>
//	  unless:          (0 or more)
//	    <graphlet>
//	  pref: 0.80       (optional, default 1.0)
//	  time: 5.0 + 2.0  (NOTE operators only)
//	  -----
//	    <chain>
//
// Chains list directives/plays in continuation order with "~~~ N" labels,
// "@ N" cont jumps, "% N" alt jumps, "# N" fail jumps, and "..." ends.
// Plays open with ">>>", separate required activities with "+++", guards
// with "===", and close with "<<<". Comments run "//" or ";" to EOL.

const maxLabels = 100

///////////////////////////////////////////////////////////////////////////
//                                 Rules                                 //
///////////////////////////////////////////////////////////////////////////

// loadClause positions past a keyword and reads one graphlet.
func loadClause(p *semnet.Pool, g *semnet.Graphlet, in *txt.LineReader, key string, tru int) error {
	in.Skip(key)
	if in.Blank() {
		in.Flush()
	}
	if n := p.LoadGraph(g, in, tru); n <= 0 {
		return fmt.Errorf("bad %s graphlet (line %d)", key, in.Last())
	}
	return nil
}

// Load reads one rule at the current file position. Returns 1 on success,
// 0 on syntax error, -1 at end of file.
func (r *Rule) Load(in *txt.LineReader) int {
	if _, ok := in.NextContent(); !ok {
		return -1
	}
	if tok := in.Token(); tok != "RULE" {
		return 0
	}
	if tok := in.Token(); tok != "" {
		if n, err := strconv.Atoi(tok); err == nil {
			r.PNum = n
		}
	}
	if tok := in.Token(); tok == "-" {
		r.SetGist(strings.Trim(in.Head(), "\""))
	}
	in.Flush()
	if _, ok := in.NextContent(); !ok {
		return -1
	}

	r.ClrTrans()
	if !in.Begins("if:") {
		return 0
	}
	if err := loadClause(r.Pool, &r.Cond, in, "if:", 0); err != nil {
		return 0
	}
	for in.Begins("unless:") {
		if r.BuildUnless() == 0 {
			return 0
		}
		r.BuildIn(nil)
		if err := loadClause(r.Pool, &r.Unless[r.NU-1], in, "unless:", 0); err != nil {
			return 0
		}
	}
	if in.Begins("conf:") {
		in.Skip("conf:")
		v, err := strconv.ParseFloat(strings.TrimSpace(in.Head()), 64)
		if err != nil {
			return 0
		}
		r.conf = v
		r.conf0 = v
		in.Flush()
		if _, ok := in.NextContent(); !ok {
			return -1
		}
	}
	if !in.Begins("then:") {
		return 0
	}
	if err := loadClause(r.Pool, &r.Result, in, "then:", 1); err != nil {
		return 0
	}
	r.Result.ForceBelief(r.conf)
	r.Result.ActualizeAll(0) // needed for matching
	return 1
}

// Save writes the rule in machine readable form. Detail >= 2 adds the
// gist and provenance comments.
func (r *Rule) Save(w io.Writer, detail int) error {
	if detail >= 2 && r.Prov != "" {
		fmt.Fprintf(w, "// originally rule %d from %s\n\n", r.PNum, r.Prov)
	}
	fmt.Fprintf(w, "RULE")
	if r.id > 0 {
		fmt.Fprintf(w, " %d", r.id)
	}
	if detail >= 2 && r.gist != "" {
		fmt.Fprintf(w, " - %q", r.gist)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  if:")
	if err := semnet.SaveGraph(w, &r.Cond, 4, detail); err != nil {
		return err
	}
	for i := 0; i < r.NU; i++ {
		fmt.Fprintln(w, "  unless:")
		if err := semnet.SaveGraph(w, &r.Unless[i], 4, detail); err != nil {
			return err
		}
	}
	if r.conf != 1.0 {
		fmt.Fprintf(w, "  conf: %4.2f\n", r.conf)
	}
	fmt.Fprintln(w, "  then:")
	return semnet.SaveGraph(w, &r.Result, 4, 0)
}

///////////////////////////////////////////////////////////////////////////
//                               Operators                               //
///////////////////////////////////////////////////////////////////////////

// Load reads one operator (trigger, modifiers, separator, method chain).
// Returns 1 on success, 0 on syntax error, -1 at end of file.
func (op *Operator) Load(in *txt.LineReader) int {
	if _, ok := in.NextContent(); !ok {
		return -1
	}
	if tok := in.Token(); tok != "OP" {
		return 0
	}
	if tok := in.Token(); tok != "" {
		if n, err := strconv.Atoi(tok); err == nil {
			op.PNum = n
		}
	}
	if tok := in.Token(); tok == "-" {
		op.SetGist(strings.Trim(in.Head(), "\""))
	}
	in.Flush()
	if _, ok := in.NextContent(); !ok {
		return -1
	}

	op.ClrTrans()
	if !in.Begins("trig:") {
		return 0
	}
	in.Skip("trig:")
	if in.Blank() {
		in.Flush()
	}
	trig := NewDirective(DirNote)
	if trig.Load(op.Pool, in) <= 0 {
		return 0
	}
	op.Kind = trig.Kind
	op.Cond.Copy(&trig.Key)
	if _, ok := in.NextContent(); !ok {
		return 0 // method chain still required
	}

	for in.Begins("unless:") {
		if op.BuildUnless() == 0 {
			return 0
		}
		op.BuildIn(nil)
		if err := loadClause(op.Pool, &op.Unless[op.NU-1], in, "unless:", 0); err != nil {
			return 0
		}
	}
	if in.Begins("pref:") {
		in.Skip("pref:")
		v, err := strconv.ParseFloat(strings.TrimSpace(in.Head()), 64)
		if err != nil {
			return 0
		}
		op.pref = v
		op.pref0 = v
		in.Flush()
		in.NextContent()
	}
	if in.Begins("time:") {
		in.Skip("time:")
		var avg, dev float64
		if _, err := fmt.Sscanf(in.Head(), "%f + %f", &avg, &dev); err != nil {
			return 0
		}
		op.SetTime(avg, dev)
		in.Flush()
		in.NextContent()
	}

	// separator then method chain
	if !in.Begins("-----") {
		return 0
	}
	in.Flush()
	meth := NewChain()
	if res := meth.Load(op.Pool, in, 0); res <= 0 {
		return res
	}
	op.Meth = meth
	return 1
}

// Save writes the operator. Detail >= 2 adds the gist and provenance.
func (op *Operator) Save(w io.Writer, detail int) error {
	if detail >= 2 && op.Prov != "" {
		fmt.Fprintf(w, "// originally operator %d from %s\n\n", op.PNum, op.Prov)
	}
	fmt.Fprintf(w, "OP")
	if op.id > 0 {
		fmt.Fprintf(w, " %d", op.id)
	}
	if detail >= 2 && op.gist != "" {
		fmt.Fprintf(w, " - %q", op.gist)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  trig:")
	trig := NewDirective(op.Kind)
	trig.Key.Copy(&op.Cond)
	if err := trig.Save(w, 4, detail); err != nil {
		return err
	}
	for i := 0; i < op.NU; i++ {
		fmt.Fprintln(w, "  unless:")
		if err := semnet.SaveGraph(w, &op.Unless[i], 4, detail); err != nil {
			return err
		}
	}
	if op.pref != 1.0 {
		fmt.Fprintf(w, "  pref: %4.2f\n", op.pref)
	}
	if op.Kind == DirNote {
		fmt.Fprintf(w, "  time: %3.1f + %3.1f\n", op.tavg, op.tstd)
	}
	fmt.Fprintln(w, "-----------------")
	_, err := op.Meth.Save(w, 4)
	return err
}

///////////////////////////////////////////////////////////////////////////
//                              Directives                               //
///////////////////////////////////////////////////////////////////////////

// Load parses "KIND[ graphlet ]" (possibly spanning lines) into the key.
func (d *Directive) Load(pool *semnet.Pool, in *txt.LineReader) int {
	ln, ok := in.NextContent()
	if !ok {
		return -1
	}
	br := strings.IndexByte(ln, '[')
	if br < 0 {
		return 0
	}
	kind := KindFromTag(strings.TrimSpace(ln[:br]))
	if kind < 0 {
		return 0
	}
	d.Kind = kind

	// gather bracketed text (may span lines)
	var body strings.Builder
	rest := ln[br+1:]
	for {
		if end := strings.LastIndexByte(rest, ']'); end >= 0 {
			body.WriteString(rest[:end])
			body.WriteByte('\n')
			in.Flush()
			break
		}
		body.WriteString(rest)
		body.WriteByte('\n')
		in.Flush()
		var ok2 bool
		rest, ok2 = in.Next(false)
		if !ok2 {
			return 0 // unterminated bracket
		}
	}

	if strings.TrimSpace(body.String()) == "" {
		return 1 // e.g. PUNT[ ]
	}
	sub := txt.FromString(body.String())
	if n := pool.LoadGraph(&d.Key, sub, 0); n <= 0 {
		return 0
	}
	return 1
}

// Save writes "KIND[ graphlet ]" with hanging indentation.
func (d *Directive) Save(w io.Writer, indent, detail int) error {
	pre := strings.Repeat(" ", indent)
	head := d.KindTag() + "["
	if d.Key.NumItems() == 0 {
		_, err := fmt.Fprintf(w, "%s%s ]\n", pre, head)
		return err
	}

	var buf strings.Builder
	if err := semnet.SaveGraph(&buf, &d.Key, 0, detail); err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, ln := range lines {
		switch {
		case i == 0 && len(lines) == 1:
			fmt.Fprintf(w, "%s%s %s ]\n", pre, head, ln)
		case i == 0:
			fmt.Fprintf(w, "%s%s %s\n", pre, head, ln)
		case i == len(lines)-1:
			fmt.Fprintf(w, "%s%s %s ]\n", pre, strings.Repeat(" ", len(head)), ln)
		default:
			fmt.Fprintf(w, "%s%s %s\n", pre, strings.Repeat(" ", len(head)), ln)
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
//                                Chains                                 //
///////////////////////////////////////////////////////////////////////////

// Load reads a chain starting at the current position, resolving jump
// labels into graph edges. Returns 2 ok and input done, 1 ok, 0 syntax
// error, -1 end of file.
func (ch *Chain) Load(pool *semnet.Pool, in *txt.LineReader, play int) int {
	if _, ok := in.NextContent(); !ok {
		return -1
	}
	label := make([]*Chain, maxLabels)
	var fix []*Chain
	ans := ch.buildChain(pool, label, &fix, in)
	if play <= 0 && ans > 2 {
		return 0 // play marker outside a play
	}
	if ans > 0 && !linkGraph(fix, label) {
		return 0
	}
	return ans
}

// jumpNum parses the label number at the head of a jump line.
func jumpNum(head string) (int, bool) {
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return 0, false
	}
	num, err := strconv.Atoi(fields[0])
	if err != nil || num <= 0 || num >= maxLabels {
		return 0, false
	}
	return num, true
}

// buildChain reads this step's payload and continuation, caching labels
// and recording steps with numeric jumps for later fix-up.
// Returns 5 play end, 4 new guard, 3 new required, 2 ok and done, 1 ok,
// 0 syntax error, -1 end of file.
func (ch *Chain) buildChain(pool *semnet.Pool, label []*Chain, fix *[]*Chain, in *txt.LineReader) int {
	ans := ch.getPayload(pool, label, in)
	if ans != 1 {
		return ans
	}
	if _, ok := in.Next(false); !ok {
		return 2
	}

	stop := false

	// alternate CHK continuation jump ("% 15") - must be first
	if ch.d != nil && ch.d.HasAlt() && in.First("%") {
		in.Skip("%")
		if strings.HasPrefix(in.Head(), "...") {
			ch.AltFail = 0
		} else {
			num, ok := jumpNum(in.Head())
			if !ok {
				return 0
			}
			*fix = append(*fix, ch)
			ch.anum = num
		}
		in.Flush()
		if _, ok := in.Next(false); !ok {
			return -1
		}
	}

	// fail continuation jump ("# 22")
	if in.First("#") {
		in.Skip("#")
		num, ok := jumpNum(in.Head())
		if !ok {
			return 0
		}
		if ch.anum <= 0 {
			*fix = append(*fix, ch)
		}
		ch.fnum = num
		in.Flush()
		if _, ok := in.Next(false); !ok {
			return -1
		}
	}

	// normal continuation jump ("@ 11")
	if in.First("@") {
		in.Skip("@")
		num, ok := jumpNum(in.Head())
		if !ok {
			return 0
		}
		if ch.anum <= 0 && ch.fnum <= 0 {
			*fix = append(*fix, ch)
		}
		ch.cnum = num
		in.Flush()
		if _, ok := in.Next(false); !ok {
			return 2
		}
	}

	// explicit chain end ("...")
	if strings.HasPrefix(in.Head(), "...") {
		stop = true
		in.Flush()
		if _, ok := in.Next(false); !ok {
			return 2
		}
	}

	if in.Blank() {
		return 2
	}
	s2 := NewChain()
	ans = s2.buildChain(pool, label, fix, in)
	if ans <= 0 {
		return ans
	}
	if s2.Empty() {
		// only a marker was read; propagate it
	} else if ch.cnum <= 0 && !stop {
		ch.Cont = s2
	}
	return ans
}

// getPayload reads the directive or play at the current position,
// handling labels and play delimiters.
func (ch *Chain) getPayload(pool *semnet.Pool, label []*Chain, in *txt.LineReader) int {
	if _, ok := in.Next(false); !ok {
		return -1
	}
	switch {
	case in.Begins("+++"):
		in.Flush()
		return 3
	case in.Begins("==="):
		in.Flush()
		return 4
	case in.Begins("<<<"):
		in.Flush()
		return 5
	}

	// step label ("~~~ 12")
	if in.Begins("~~~") {
		in.Skip("~~~")
		num, ok := jumpNum(in.Head())
		if !ok {
			return 0
		}
		label[num] = ch
		ch.idx = num
		in.Flush()
		if _, ok := in.Next(false); !ok {
			return -1
		}
	}

	// play starting with next line
	if in.Begins(">>>") {
		in.Flush()
		ch.p = NewPlay()
		return ch.p.Load(pool, in)
	}

	// directive re-using this line
	d := NewDirective(DirNote)
	if ans := d.Load(pool, in); ans <= 0 {
		return ans
	}
	ch.d = d
	if d.Kind == DirEach || d.Kind == DirAny {
		ch.Enumerate()
	}
	return 1
}

// linkGraph substitutes real steps for numbered jumps.
func linkGraph(fix []*Chain, label []*Chain) bool {
	ok := true
	for _, s := range fix {
		if s.anum > 0 {
			s.Alt = label[s.anum]
			s.anum = 0
		}
		if s.cnum > 0 {
			if label[s.cnum] == nil {
				ok = false
			}
			s.Cont = label[s.cnum]
			s.cnum = 0
		}
		if s.fnum > 0 {
			if label[s.fnum] == nil {
				ok = false
			}
			s.Fail = label[s.fnum]
			s.fnum = 0
		}
	}
	return ok
}

// Save writes the chain graph: the main continuation run first, then any
// labeled branch runs not already written. Returns steps written.
func (ch *Chain) Save(w io.Writer, indent int) (int, error) {
	ch.labelAll()
	written := map[*Chain]bool{}
	cnt, err := ch.saveRun(w, indent, written)
	if err != nil {
		return cnt, err
	}

	// emit labeled branch targets not on the main line
	for {
		var pend *Chain
		minIdx := maxLabels
		walkAll(ch, func(s *Chain) {
			if s.idx > 0 && s.idx < minIdx && !written[s] {
				pend = s
				minIdx = s.idx
			}
		})
		if pend == nil {
			break
		}
		n, err := pend.saveRun(w, indent, written)
		cnt += n
		if err != nil {
			return cnt, err
		}
	}
	return cnt, nil
}

// saveRun writes one linear continuation run.
func (ch *Chain) saveRun(w io.Writer, indent int, written map[*Chain]bool) (int, error) {
	pre := strings.Repeat(" ", indent)
	cnt := 0
	s := ch
	for s != nil && !written[s] {
		written[s] = true
		cnt++
		if s.idx > 0 {
			fmt.Fprintf(w, "%s~~~ %d\n", pre, s.idx)
		}
		switch {
		case s.d != nil:
			if err := s.d.Save(w, indent+1, 1); err != nil {
				return cnt, err
			}
		case s.p != nil:
			n, err := s.p.Save(w, indent)
			cnt += n
			if err != nil {
				return cnt, err
			}
		}
		if s.Alt != nil {
			fmt.Fprintf(w, "%s %% %d\n", pre, s.Alt.idx)
		} else if s.d != nil && s.d.HasAlt() && s.AltFail == 0 {
			fmt.Fprintf(w, "%s %% ...\n", pre)
		}
		if s.Fail != nil {
			fmt.Fprintf(w, "%s # %d\n", pre, s.Fail.idx)
		}
		if s.Cont == nil {
			fmt.Fprintf(w, "%s ...\n", pre)
			return cnt, nil
		}
		if written[s.Cont] {
			fmt.Fprintf(w, "%s @ %d\n", pre, s.Cont.idx)
			fmt.Fprintf(w, "%s ...\n", pre)
			return cnt, nil
		}
		s = s.Cont
	}
	return cnt, nil
}

// labelAll numbers every step that is the target of an alt/fail edge or of
// a shared/backward cont edge.
func (ch *Chain) labelAll() {
	// clear old labels
	walkAll(ch, func(s *Chain) { s.idx = 0 })

	next := 1
	need := func(s *Chain) {
		if s != nil && s.idx == 0 {
			s.idx = next
			next++
		}
	}
	seenCont := map[*Chain]bool{}
	walkAll(ch, func(s *Chain) {
		need(s.Alt)
		if s.Fail != nil {
			need(s.Fail)
		}
		if s.Cont != nil {
			if seenCont[s.Cont] {
				need(s.Cont)
			}
			seenCont[s.Cont] = true
		}
	})
}

// walkAll visits every step reachable in the graph exactly once.
func walkAll(ch *Chain, fn func(*Chain)) {
	seen := map[*Chain]bool{}
	var walk func(s *Chain)
	walk = func(s *Chain) {
		if s == nil || seen[s] {
			return
		}
		seen[s] = true
		fn(s)
		if s.p != nil {
			for i := 0; i < s.p.NumReq(); i++ {
				walk(s.p.ReqN(i))
			}
			for i := 0; i < s.p.NumSimul(); i++ {
				walk(s.p.SimulN(i))
			}
		}
		walk(s.Cont)
		walk(s.Alt)
		walk(s.Fail)
	}
	walk(ch)
}

///////////////////////////////////////////////////////////////////////////
//                                 Plays                                 //
///////////////////////////////////////////////////////////////////////////

// Load reads play activities up to the closing "<<<" marker.
func (p *Play) Load(pool *semnet.Pool, in *txt.LineReader) int {
	kind := 3 // required until a "===" marker appears
	for {
		s := NewChain()
		chain := s.Load(pool, in, 1)
		if chain <= 0 {
			return chain
		}
		if !s.Empty() {
			var add int
			if kind == 4 {
				add = p.AddSimul(s)
			} else {
				add = p.AddReq(s)
			}
			if add <= 0 {
				return 0
			}
		}
		switch chain {
		case 5:
			return 1 // play end marker
		case 2, 1:
			return chain // input exhausted
		default:
			kind = chain // 3 or 4: next activity type
		}
	}
}

// Save writes the play with its delimiters. Returns steps written.
func (p *Play) Save(w io.Writer, indent int) (int, error) {
	pre := strings.Repeat(" ", indent)
	cnt := 0
	fmt.Fprintf(w, "%s>>>\n", pre)
	for i := 0; i < p.NumReq(); i++ {
		fmt.Fprintf(w, "%s+++\n", pre)
		n, err := p.ReqN(i).Save(w, indent+2)
		cnt += n
		if err != nil {
			return cnt, err
		}
	}
	for i := 0; i < p.NumSimul(); i++ {
		fmt.Fprintf(w, "%s===\n", pre)
		n, err := p.SimulN(i).Save(w, indent+2)
		cnt += n
		if err != nil {
			return cnt, err
		}
	}
	fmt.Fprintf(w, "%s<<<\n", pre)
	return cnt, nil
}

///////////////////////////////////////////////////////////////////////////
//                          Memory file functions                        //
///////////////////////////////////////////////////////////////////////////

// LoadFile reads rules from a file, appending to the current collection.
// Returns the number of rules accepted.
func (am *AssocMem) LoadFile(fname string, level int) (int, error) {
	in, err := txt.Open(fname)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	src := strings.TrimSuffix(filepath.Base(fname), filepath.Ext(fname))
	n := 0
	for {
		r := NewRule()
		ans := r.Load(in)
		if ans < 0 {
			break
		}
		if ans == 0 {
			logging.KBWarn("bad rule syntax at line %d in %s", in.Last(), fname)
			if !in.NextBlank() {
				break
			}
			continue
		}
		r.lvl = level
		r.Prov = src
		if am.AddRule(r, 0) > 0 {
			n++
		}
	}
	return n, nil
}

// SaveFile writes all rules at or above the given level.
func (am *AssocMem) SaveFile(fname string, level int) (int, error) {
	f, err := os.Create(fname)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	cnt := 0
	for r := am.NextRule(nil); r != nil; r = r.next {
		if r.lvl >= level {
			if err := r.Save(f, 2); err != nil {
				return cnt, err
			}
			fmt.Fprintln(f)
			cnt++
		}
	}
	return cnt, nil
}

// Alterations stores confidence values that drifted from their loaded
// defaults, so learning survives without editing the base files.
func (am *AssocMem) Alterations(fname string) (int, error) {
	f, err := os.Create(fname)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	fmt.Fprintln(f, "// learned changes to default rule confidences")
	fmt.Fprintln(f)
	na := 0
	for r := am.NextRule(nil); r != nil; r = r.next {
		if r.Prov != "" && r.conf != r.conf0 {
			fmt.Fprintf(f, "%s %d = %4.2f\n", r.Prov, r.PNum, r.conf)
			na++
		}
	}
	return na, nil
}

// Overrides applies stored confidence changes to matching rules.
func (am *AssocMem) Overrides(fname string) (int, error) {
	in, err := txt.Open(fname)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	na := 0
	for {
		if _, ok := in.NextContent(); !ok {
			break
		}
		src := in.Token()
		numTok := in.Token()
		eq := in.Token()
		valTok := in.Token()
		in.Flush()
		if src == "" || eq != "=" {
			continue
		}
		num, err1 := strconv.Atoi(numTok)
		val, err2 := strconv.ParseFloat(valTok, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		for r := am.NextRule(nil); r != nil; r = r.next {
			if r.Prov == src && r.PNum == num {
				r.SetConf(val)
				na++
				break
			}
		}
	}
	return na, nil
}

// LoadDir reads every *.rules file in a directory (sorted), then applies
// any *.conf overrides. Returns the number of rules accepted.
func (am *AssocMem) LoadDir(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.rules"))
	if err != nil {
		return 0, err
	}
	sort.Strings(files)
	total := 0
	for _, f := range files {
		n, err := am.LoadFile(f, 1)
		if err != nil {
			return total, err
		}
		logging.KB("%3d inference rules from %s", n, f)
		total += n
	}
	confs, _ := filepath.Glob(filepath.Join(dir, "*.conf"))
	sort.Strings(confs)
	for _, f := range confs {
		am.Overrides(f)
	}
	return total, nil
}

// LoadFile reads operators from a file, appending to the collection.
func (pm *ProcMem) LoadFile(fname string, level int) (int, error) {
	in, err := txt.Open(fname)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	src := strings.TrimSuffix(filepath.Base(fname), filepath.Ext(fname))
	n := 0
	for {
		op := NewOperator(DirNote)
		ans := op.Load(in)
		if ans < 0 {
			break
		}
		if ans == 0 {
			logging.KBWarn("bad operator syntax at line %d in %s", in.Last(), fname)
			if !in.NextBlank() {
				break
			}
			continue
		}
		op.lvl = level
		op.Prov = src
		if pm.AddOperator(op) > 0 {
			n++
		}
	}
	return n, nil
}

// SaveFile writes all operators at or above the given level.
func (pm *ProcMem) SaveFile(fname string, level int) (int, error) {
	f, err := os.Create(fname)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	cnt := 0
	for op := pm.NextOp(nil); op != nil; op = op.next {
		if op.lvl >= level {
			if err := op.Save(f, 2); err != nil {
				return cnt, err
			}
			fmt.Fprintln(f)
			cnt++
		}
	}
	return cnt, nil
}

// Alterations stores preference (and NOTE timing) drift.
func (pm *ProcMem) Alterations(fname string) (int, error) {
	f, err := os.Create(fname)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	fmt.Fprintln(f, "// learned changes to default operator preferences")
	fmt.Fprintln(f)
	na := 0
	for op := pm.NextOp(nil); op != nil; op = op.next {
		if op.Prov == "" || op.pref == op.pref0 {
			continue
		}
		fmt.Fprintf(f, "%s %d = %4.2f", op.Prov, op.PNum, op.pref)
		if op.Kind == DirNote {
			fmt.Fprintf(f, " : %3.1f + %3.1f", op.tavg, op.tstd)
		}
		fmt.Fprintln(f)
		na++
	}
	return na, nil
}

// Overrides applies stored preference changes to matching operators.
func (pm *ProcMem) Overrides(fname string) (int, error) {
	in, err := txt.Open(fname)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	na := 0
	for {
		if _, ok := in.NextContent(); !ok {
			break
		}
		src := in.Token()
		numTok := in.Token()
		eq := in.Token()
		valTok := in.Token()
		if src == "" || eq != "=" {
			in.Flush()
			continue
		}
		num, err1 := strconv.Atoi(numTok)
		val, err2 := strconv.ParseFloat(valTok, 64)
		if err1 != nil || err2 != nil {
			in.Flush()
			continue
		}
		var avg, dev float64
		hasTime := false
		if in.Token() == ":" {
			if _, err := fmt.Sscanf(in.Head(), "%f + %f", &avg, &dev); err == nil {
				hasTime = true
			}
		}
		in.Flush()
		for op := pm.NextOp(nil); op != nil; op = op.next {
			if op.Prov == src && op.PNum == num {
				op.SetPref(val)
				if hasTime {
					op.SetTime(avg, dev)
				}
				na++
				break
			}
		}
	}
	return na, nil
}

// LoadDir reads every *.ops file in a directory (sorted), then applies
// any *.pref overrides. Returns the number of operators accepted.
func (pm *ProcMem) LoadDir(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.ops"))
	if err != nil {
		return 0, err
	}
	sort.Strings(files)
	total := 0
	for _, f := range files {
		n, err := pm.LoadFile(f, 1)
		if err != nil {
			return total, err
		}
		logging.KB("%3d operators from %s", n, f)
		total += n
	}
	prefs, _ := filepath.Glob(filepath.Join(dir, "*.pref"))
	sort.Strings(prefs)
	for _, f := range prefs {
		pm.Overrides(f)
	}
	return total, nil
}

///////////////////////////////////////////////////////////////////////////
//                              Foci dumps                               //
///////////////////////////////////////////////////////////////////////////

// SaveFoci dumps the current attention state for inspection.
func (at *ActionTree) SaveFoci(w io.Writer) int {
	cnt := 0
	for i := 0; i < at.fill; i++ {
		age := 0.0
		if !at.active[i].IsZero() {
			age = at.now.Sub(at.active[i]).Seconds()
		}
		fmt.Fprintf(w, "// FOCUS %d: imp = %d, age = %3.1f\n", i, at.BaseBid(i), age)
		at.focus[i].Save(w, 1)
		fmt.Fprintln(w)
		cnt++
	}
	return cnt
}
