package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noesis/internal/txt"
)

const ruleText = `RULE 7 - "dogs are animals"
  if:
    obj-1
    ako-2 -lex-  dog
          -ako-> obj-1
  conf: 0.90
  then:
    ako-3 -lex-  animal
          -ako-> obj-1
`

const opText = `OP 3 - "grab things by hand"
  trig:
    DO[ act-1 -lex-  grab
              -obj-> obj-2 ]
  pref: 0.80
-----------------
     FCN[ act-3 -lex-  gnd_grab
                -obj-> obj-2 ]
 ...
`

func TestRuleLoad(t *testing.T) {
	r := NewRule()
	require.Equal(t, 1, r.Load(txt.FromString(ruleText)))

	assert.Equal(t, 7, r.PNum)
	assert.Equal(t, "dogs are animals", r.Gist())
	assert.Equal(t, 0.9, r.Conf())
	assert.Equal(t, 2, r.Cond.NumItems())
	require.Equal(t, 1, r.Result.NumItems())

	res := r.Result.Item(0)
	assert.Equal(t, "animal", res.Lex())
	assert.Equal(t, 0.9, res.Belief(), "result belief actualized from conf")

	// then-part shares the obj node with the if-part
	cond := r.Cond.Item(1) // ako-2
	assert.Same(t, cond.Arg(0), res.Arg(0))
}

func TestRuleRoundTrip(t *testing.T) {
	r := NewRule()
	require.Equal(t, 1, r.Load(txt.FromString(ruleText)))

	var buf1 bytes.Buffer
	require.NoError(t, r.Save(&buf1, 0))

	r2 := NewRule()
	require.Equal(t, 1, r2.Load(txt.FromString(buf1.String())))
	var buf2 bytes.Buffer
	require.NoError(t, r2.Save(&buf2, 0))

	assert.Equal(t, buf1.String(), buf2.String(), "save-load-save must be byte identical")
}

func TestOperatorLoad(t *testing.T) {
	op := NewOperator(DirNote)
	require.Equal(t, 1, op.Load(txt.FromString(opText)))

	assert.Equal(t, DirDo, op.Kind)
	assert.Equal(t, 0.8, op.Pref())
	assert.Equal(t, 2, op.Cond.NumItems())
	require.NotNil(t, op.Meth)

	fd := op.Meth.GetDir()
	require.NotNil(t, fd)
	assert.Equal(t, DirFcn, fd.Kind)
	assert.Equal(t, "gnd_grab", fd.Key.MainTag())

	// method argument ties back to the trigger variable
	trigObj := op.Cond.Item(0).Arg(0)
	assert.Same(t, trigObj, fd.Key.Main().Arg(0))
}

func TestOperatorRoundTrip(t *testing.T) {
	op := NewOperator(DirNote)
	require.Equal(t, 1, op.Load(txt.FromString(opText)))

	var buf1 bytes.Buffer
	require.NoError(t, op.Save(&buf1, 0))

	op2 := NewOperator(DirNote)
	require.Equal(t, 1, op2.Load(txt.FromString(buf1.String())), "reload:\n%s", buf1.String())
	var buf2 bytes.Buffer
	require.NoError(t, op2.Save(&buf2, 0))

	assert.Equal(t, buf1.String(), buf2.String())
}

const chainText = ` CHK[ hq-1 -lex-  red
           -hq--> obj-2 ]
 % 1
 FCN[ act-3 -lex-  gnd_a ]
 ...
~~~ 1
 FCN[ act-4 -lex-  gnd_b ]
 ...
`

func TestChainLabelsAndJumps(t *testing.T) {
	pool := NewRule().Pool // any scratch pool
	ch := NewChain()
	in := txt.FromString(chainText)
	require.GreaterOrEqual(t, ch.Load(pool, in, 0), 1)

	require.NotNil(t, ch.GetDir())
	assert.Equal(t, DirChk, ch.GetDir().Kind)
	require.NotNil(t, ch.Alt, "alt jump should resolve to labeled step")
	require.NotNil(t, ch.Alt.GetDir())
	assert.Equal(t, "gnd_b", ch.Alt.GetDir().Key.MainTag())
	require.NotNil(t, ch.Cont)
	assert.Equal(t, "gnd_a", ch.Cont.GetDir().Key.MainTag())

	// topology survives a save-load-save round trip
	var buf1 bytes.Buffer
	_, err := ch.Save(&buf1, 1)
	require.NoError(t, err)

	ch2 := NewChain()
	require.GreaterOrEqual(t, ch2.Load(pool, txt.FromString(buf1.String()), 0), 1,
		"reload:\n%s", buf1.String())
	require.NotNil(t, ch2.Alt)
	assert.Equal(t, "gnd_b", ch2.Alt.GetDir().Key.MainTag())

	var buf2 bytes.Buffer
	_, err = ch2.Save(&buf2, 1)
	require.NoError(t, err)
	assert.Equal(t, buf1.String(), buf2.String())
}

const playText = ` >>>
 +++
  FCN[ act-1 -lex-  gnd_x ]
  ...
 +++
  FCN[ act-2 -lex-  gnd_y ]
  ...
 ===
  KEEP[ ]
  ...
 <<<
 ...
`

func TestPlayLoad(t *testing.T) {
	pool := NewRule().Pool
	ch := NewChain()
	require.GreaterOrEqual(t, ch.Load(pool, txt.FromString(playText), 0), 1)

	p := ch.GetPlay()
	require.NotNil(t, p)
	assert.Equal(t, 2, p.NumReq())
	assert.Equal(t, 1, p.NumSimul())
	assert.Equal(t, "gnd_y", p.ReqN(1).GetDir().Key.MainTag())
	assert.Equal(t, DirKeep, p.SimulN(0).GetDir().Kind)
}

func TestFileLoadSaveDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.rules"), []byte(ruleText), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.ops"), []byte(opText), 0644))

	am := NewAssocMem()
	nr, err := am.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, nr)
	assert.Equal(t, "base", am.RuleList().Prov)

	pm := NewProcMem()
	no, err := pm.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, no)
}

func TestConfOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.rules"), []byte(ruleText), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.conf"),
		[]byte("// override\nbase 7 = 0.55\n"), 0644))

	am := NewAssocMem()
	_, err := am.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.55, am.RuleList().Conf(), "override should change confidence")

	// alterations write the drift back out
	out := filepath.Join(dir, "out.conf")
	na, err := am.Alterations(out)
	require.NoError(t, err)
	assert.Equal(t, 1, na)
	data, _ := os.ReadFile(out)
	assert.Contains(t, string(data), "base 7 = 0.55")
}

func TestPrefOverridesWithTime(t *testing.T) {
	dir := t.TempDir()
	noteOp := `OP 4 - "react"
  trig:
    NOTE[ hq-1 -lex-  hungry
               -hq--> obj-2 ]
-----------------
     FCN[ act-3 -lex-  gnd_eat ]
 ...
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.ops"), []byte(noteOp), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.pref"),
		[]byte("base 4 = 0.65 : 8.0 + 3.0\n"), 0644))

	pm := NewProcMem()
	_, err := pm.LoadDir(dir)
	require.NoError(t, err)
	op := pm.OpList()
	assert.Equal(t, 0.65, op.Pref())
	assert.Equal(t, 8.0, op.Time())
	assert.Equal(t, 3.0, op.Dev())
}

func TestSaveFoci(t *testing.T) {
	k := testKernel(t)
	ch := NewChain()
	ch.BindDir(NewDirective(DirKeep))
	k.Atree.AddFocus(ch, 0.7)

	var buf bytes.Buffer
	n := k.Atree.SaveFoci(&buf)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "// FOCUS 0: imp = ")
	assert.Contains(t, buf.String(), "KEEP[ ]")
}
