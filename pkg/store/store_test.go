package store_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)}
}

func sys(tags ...core.SystemTag) *core.AttributesPatch {
	return core.Patch().WithSystemTags(tags...)
}

func TestGreetingTemplate(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("greeting", "Hello {{name}}!", sys(core.TagApplyTemplate, core.TagSystemPrompt)))
	require.NoError(t, s.Set("name", "Ada", sys(core.TagSystemPrompt)))

	got, ok := s.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "Hello Ada!", got)

	raw, _ := s.GetRaw("greeting")
	assert.Equal(t, "Hello {{name}}!", raw)

	require.True(t, s.Delete("name"))
	got, _ = s.Get("greeting")
	assert.Equal(t, "Hello !", got)
}

func TestTemplate_ReservedAndCycle(t *testing.T) {
	clk := newClock()
	s := store.New(store.WithClock(clk.Now), store.WithVersion("9.9"), store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("stamp", "{{$date}}@{{$time}} v{{$version}}", sys(core.TagApplyTemplate)))
	got, _ := s.Get("stamp")
	assert.Equal(t, "2024-03-09@14:05:07 v9.9", got)

	require.NoError(t, s.Set("a", "a:{{b}}", sys(core.TagApplyTemplate, core.TagLLMRead)))
	require.NoError(t, s.Set("b", "b:{{a}}", sys(core.TagApplyTemplate, core.TagLLMRead)))
	got, _ = s.Get("a")
	assert.Equal(t, "a:b:a:{{b}}", got)
}

func TestReservedKeys(t *testing.T) {
	s := store.New()
	err := s.Set(core.ReservedDate, "x", nil)
	assert.ErrorIs(t, err, core.ErrReservedKey)
	assert.False(t, s.Exists(core.ReservedDate))
	_, ok := s.Get(core.ReservedVersion)
	assert.False(t, ok)
	assert.False(t, s.Delete(core.ReservedTime))
	assert.ErrorIs(t, s.Set("", "x", nil), core.ErrInvalidKey)
}

func TestSet_MergesAttributes(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set("k", "v", core.Patch().WithContentTags("a").WithZIndex(3)))
	require.NoError(t, s.Set("k", "v2", core.Patch().WithContentTags("b")))

	attrs, ok := s.GetAttributes("k")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, attrs.ContentTags)
	assert.Equal(t, 3, attrs.ZIndex, "unspecified fields survive")
	assert.Equal(t, core.TypeText, attrs.Type)
}

func TestCreate(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Create("k", "v", nil))
	assert.ErrorIs(t, s.Create("k", "v", nil), core.ErrAlreadyExists)
}

func TestValidation(t *testing.T) {
	s := store.New()
	assert.ErrorIs(t, s.Set("j", "{nope", core.Patch().WithType(core.TypeJSON)), core.ErrInvalidValue)
	assert.NoError(t, s.Set("j", `{"ok":true}`, core.Patch().WithType(core.TypeJSON)))

	assert.ErrorIs(t, s.Set("img", "aGk=", core.Patch().WithType(core.TypeImage)), core.ErrInvalidContentType)
	assert.ErrorIs(t, s.Set("img", "aGk=", core.Patch().WithType(core.TypeImage).WithContentType("text/plain")), core.ErrInvalidContentType)
	assert.ErrorIs(t, s.Set("img", "%%%", core.Patch().WithType(core.TypeImage).WithContentType("image/png")), core.ErrInvalidValue)
	assert.False(t, s.Exists("img"))

	var cerr *core.Error
	err := s.Set("j", "bad", nil)
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "j", cerr.Key)
}

func TestBinary(t *testing.T) {
	s := store.New()
	require.NoError(t, s.SetBinary("logo", []byte{0x89, 'P', 'N', 'G'}, core.TypeImage, "image/png"))
	data, ct, ok := s.GetBinary("logo")
	require.True(t, ok)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
	assert.Equal(t, "image/png", ct)

	assert.ErrorIs(t, s.SetBinary("x", nil, core.TypeText, "text/plain"), core.ErrInvalidType)
}

func TestPermissions_SystemTagsNeedElevation(t *testing.T) {
	s := store.New()
	assert.ErrorIs(t, s.Set("k", "v", sys(core.TagLLMRead)), core.ErrPermissionDenied)
	assert.ErrorIs(t, s.Create("k", "v", sys(core.TagLLMRead)), core.ErrPermissionDenied)
	assert.False(t, s.Exists("k"))

	s.SetAccessLevel(core.AccessSystem)
	require.NoError(t, s.Set("k", "v", sys(core.TagLLMRead)))
	s.SetAccessLevel(core.AccessUser)

	assert.False(t, s.SetAttributes("k", sys(core.TagLLMWrite)))
	assert.ErrorIs(t, s.Set("k", "v", sys(core.TagLLMWrite)), core.ErrPermissionDenied)
	assert.False(t, s.SystemAddTag("k", core.TagLLMWrite))
	assert.Nil(t, s.SystemGetTags("k"))
	assert.False(t, s.SystemHasTag("k", core.TagLLMRead))
	assert.Nil(t, s.SystemGetKeysByTag(core.TagLLMRead))

	assert.True(t, s.SetAttributes("k", core.Patch().WithContentTags("free")), "content tags need no elevation")
	assert.NoError(t, s.Set("k", "v2", sys(core.TagLLMRead)), "unchanged system tags are fine")

	s.SetAccessLevel(core.AccessSystem)
	assert.True(t, s.SystemAddTag("k", core.TagLLMWrite))
	assert.Equal(t, []core.SystemTag{core.TagLLMRead, core.TagLLMWrite}, s.SystemGetTags("k"))
	assert.True(t, s.SystemHasTag("k", core.TagLLMWrite))
	assert.Equal(t, []string{"k"}, s.SystemGetKeysByTag(core.TagLLMWrite))
	assert.True(t, s.SystemRemoveTag("k", core.TagLLMRead))
	assert.True(t, s.SystemSetTags("k", []core.SystemTag{core.TagSystemPrompt}))
	assert.False(t, s.SystemAddTag("k", core.SystemTag("bogus")))
}

func TestProtectedInvariant(t *testing.T) {
	for _, level := range []core.AccessLevel{core.AccessUser, core.AccessSystem, core.AccessAdmin} {
		t.Run(string(level), func(t *testing.T) {
			s := store.New(store.WithAccessLevel(core.AccessSystem))
			require.NoError(t, s.Set("core", "keep me", sys(core.TagProtected, core.TagLLMRead)))
			s.SetAccessLevel(level)

			assert.False(t, s.Delete("core"))
			assert.False(t, s.SystemRemoveTag("core", core.TagProtected))
			assert.False(t, s.SystemSetTags("core", []core.SystemTag{core.TagLLMRead}))
			assert.False(t, s.SetAttributes("core", sys()))
			assert.Error(t, s.Set("core", "v", sys(core.TagLLMRead)))
			assert.False(t, s.ApplyRemoteDelete("core"))

			s.Clear()
			v, ok := s.Get("core")
			assert.True(t, ok)
			assert.Equal(t, "keep me", v)
		})
	}
}

func TestContext(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set("home", "garden", core.Patch().WithContentTags("personal")))

	s.SetContext(&core.ContextRules{
		Tags:               []string{"work"},
		DefaultContentTags: []string{"inbox"},
		DefaultSystemTags:  []core.SystemTag{core.TagLLMRead},
	})
	require.NoError(t, s.Set("task", "ship it", core.Patch().WithContentTags("urgent")))

	attrs, ok := s.GetAttributes("task")
	require.True(t, ok)
	assert.Equal(t, []string{"work", "inbox", "urgent"}, attrs.ContentTags)
	assert.Equal(t, []core.SystemTag{core.TagLLMRead}, attrs.SystemTags)
	require.NoError(t, s.Set("note", "n", sys(core.TagLLMRead)), "context defaults need no elevation")
	assert.ErrorIs(t, s.Set("memo", "m", sys(core.TagLLMWrite)), core.ErrPermissionDenied)
	require.True(t, s.Delete("note"))

	assert.Equal(t, []string{"task"}, s.Keys())
	assert.False(t, s.Exists("home"))
	_, ok = s.Get("home")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Set("home", "x", nil), core.ErrContextMismatch)
	assert.ErrorIs(t, s.Set("task", "x", core.Patch().WithContentTags("other")), core.ErrContextMismatch)
	assert.False(t, s.Delete("home"))
	assert.Contains(t, s.Serialize(), "home", "the context never hides entries from collaborators")

	s.SetContext(&core.ContextRules{Tags: []string{}})
	assert.ElementsMatch(t, []string{"home", "task"}, s.Keys(), "empty tag list matches all")

	s.ClearContext()
	assert.Nil(t, s.Context())
	assert.Len(t, s.Keys(), 2)
}

func TestKeysOrderAndMatch(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set("notes/b", "", nil))
	require.NoError(t, s.Set("notes/a", "", nil))
	require.NoError(t, s.Set("first", "", core.Patch().WithZIndex(-1)))
	require.NoError(t, s.Set("todo/x/y", "", nil))

	assert.Equal(t, []string{"first", "notes/b", "notes/a", "todo/x/y"}, s.Keys())

	require.NoError(t, s.Set("floor", "", core.Patch().WithZIndex(math.MinInt)))
	require.NoError(t, s.Set("ceiling", "", core.Patch().WithZIndex(math.MaxInt)))
	keys := s.Keys()
	assert.Equal(t, "floor", keys[0])
	assert.Equal(t, "ceiling", keys[len(keys)-1])
	require.True(t, s.Delete("floor"))
	require.True(t, s.Delete("ceiling"))

	m, err := s.Match("notes/*")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/b", "notes/a"}, m)

	m, err = s.Match("**/y")
	require.NoError(t, err)
	assert.Equal(t, []string{"todo/x/y"}, m)

	_, err = s.Match("[")
	assert.Error(t, err)
}

func TestTags(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set("a", "1", nil))
	require.NoError(t, s.Set("b", "2", core.Patch().WithContentTags("x")))

	assert.True(t, s.AddTag("a", "x"))
	assert.True(t, s.AddTag("a", "y"))
	assert.True(t, s.AddTag("a", "y"), "adding twice is idempotent")
	assert.False(t, s.AddTag("missing", "x"))
	assert.False(t, s.AddTag("a", ""))
	assert.True(t, s.HasTag("a", "y"))
	assert.Equal(t, []string{"x", "y"}, s.GetTags("a"))
	assert.Equal(t, []string{"x", "y"}, s.GetAllTags())
	assert.Equal(t, []string{"a", "b"}, s.GetKeysByTag("x"))

	assert.True(t, s.RemoveTag("a", "x"))
	assert.False(t, s.RemoveTag("a", "x"))
	assert.Equal(t, []string{"b"}, s.GetKeysByTag("x"))
}

func TestUpdate_IsAtomic(t *testing.T) {
	s := store.New()
	err := s.Update(map[string]string{"a": "1", core.ReservedDate: "x"})
	assert.ErrorIs(t, err, core.ErrReservedKey)
	assert.False(t, s.Exists("a"))

	require.NoError(t, s.Update(map[string]string{"a": "1", "b": "2"}))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, s.GetAll())
}

func TestGetAll_AppliesTemplates(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("n", "Bo", sys(core.TagLLMRead)))
	require.NoError(t, s.Set("g", "hi {{n}}", sys(core.TagApplyTemplate)))
	assert.Equal(t, map[string]string{"n": "Bo", "g": "hi Bo"}, s.GetAll())
}

func TestRetype(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Set("doc", "text", core.Patch().WithType(core.TypeDocument)))
	_, ok := s.Document("doc")
	require.True(t, ok)

	assert.ErrorIs(t, s.Set("doc", "x", core.Patch().WithType(core.TypeText)), core.ErrRetypeRequired)

	require.NoError(t, s.SetType("doc", core.TypeText))
	_, ok = s.Document("doc")
	assert.False(t, ok)
	v, _ := s.Get("doc")
	assert.Equal(t, "text", v)

	assert.Error(t, s.SetType("doc", core.TypeJSON), "value is not JSON")
	assert.ErrorIs(t, s.SetType("missing", core.TypeText), core.ErrNotFound)
}

func TestSystemPrompt(t *testing.T) {
	s := store.New(store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("name", "Ada", sys(core.TagSystemPrompt)))
	require.NoError(t, s.Set("todo", "- x", sys(core.TagLLMRead, core.TagLLMWrite).WithType(core.TypeDocument)))
	require.NoError(t, s.Set("hidden", "secret", nil))
	require.NoError(t, s.SetBinary("logo", []byte("x"), core.TypeImage, "image/png"))
	require.True(t, s.SystemAddTag("logo", core.TagLLMRead))

	want := "<name>\nAda\n</name>\n\n" +
		"<todo>\n- x\n</todo>\n(\"todo\" is writable; it also supports append, insert and find-and-replace edits)\n\n" +
		"<logo>\n[image attachment, image/png]\n</logo>"
	assert.Equal(t, want, s.SystemPrompt())
}

func TestState(t *testing.T) {
	s := store.New(store.WithHistory(true), store.WithClock(newClock().Now), store.WithAccessLevel(core.AccessSystem))
	require.NoError(t, s.Set("a", "1", sys(core.TagProtected)))
	require.NoError(t, s.Set("d", "", core.Patch().WithType(core.TypeDocument)))
	s.SubscribeAll(func(core.Event) {})

	st, ok := s.State().(store.State)
	require.True(t, ok)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 1, st.Documents)
	assert.Equal(t, 1, st.Protected)
	assert.Equal(t, 1, st.Listeners)
	assert.True(t, st.HistoryEnabled)
	assert.Equal(t, 1, st.UndoDepth)
	assert.Equal(t, "store", s.ComponentType())
}
