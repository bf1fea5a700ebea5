package ecs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/geom"
)

type pingEvent struct{ n int }

func (pingEvent) EventName() string { return "ping" }

// recorder logs every event it sees into a shared journal.
type recorder struct {
	Base
	journal  *[]string
	detached int
}

func newRecorder(name string, journal *[]string) *recorder {
	return &recorder{Base: NewBase(name), journal: journal}
}

func (r *recorder) Handle(ev event.Event) {
	*r.journal = append(*r.journal, fmt.Sprintf("%s:%s", r.Name(), ev.EventName()))
}

func (r *recorder) OnDetach(o *GameObject) {
	r.detached++
	r.Base.OnDetach(o)
}

type stubPos struct {
	Base
	p geom.Vec2
}

func newStubPos() *stubPos { return &stubPos{Base: NewBase("position")} }

func (s *stubPos) Position() geom.Vec2 { return s.p }
func (s *stubPos) SetPosition(p geom.Vec2) {
	from := s.p
	s.p = p
	if o := s.Owner(); o != nil {
		o.NotifyMoved(from)
	}
}

func newObject(t *testing.T, comps ...Component) *GameObject {
	t.Helper()
	o, err := NewGameObject(1, "test", append([]Component{newStubPos()}, comps...))
	require.NoError(t, err)
	return o
}

func TestRegistryInstantiate(t *testing.T) {
	r := NewRegistry()
	r.Declare("position", func() Component { return newStubPos() })

	c, err := r.Instantiate("position")
	require.NoError(t, err)
	require.Equal(t, "position", c.Name())

	_, err = r.Instantiate("nope")
	require.ErrorIs(t, err, ErrUnknownComponent)
}

func TestRegistryMissingDependency(t *testing.T) {
	r := NewRegistry()
	var journal []string
	r.Declare("wasd_movement_control", func() Component {
		return newRecorder("wasd_movement_control", &journal)
	}, "position")

	_, err := r.Instantiate("wasd_movement_control")
	require.ErrorIs(t, err, ErrMissingDependency)

	// Declaring the dependency afterwards is enough; nothing is cached.
	r.Declare("position", func() Component { return newStubPos() })
	_, err = r.Instantiate("wasd_movement_control")
	require.NoError(t, err)
}

func TestRegistryRedeclareOverwrites(t *testing.T) {
	r := NewRegistry()
	var journal []string
	r.Declare("thing", func() Component { return newRecorder("first", &journal) })
	r.Declare("thing", func() Component { return newRecorder("second", &journal) })

	c, err := r.Instantiate("thing")
	require.NoError(t, err)
	require.Equal(t, "second", c.Name())
	require.Equal(t, 1, r.Len())
}

func TestRegistryBuildAbortsOnFieldError(t *testing.T) {
	r := NewRegistry()
	var journal []string
	r.Declare("position", func() Component { return newStubPos() })
	r.Declare("plain", func() Component { return newRecorder("plain", &journal) })

	_, err := r.Build([]ComponentInfo{
		{Name: "position"},
		{Name: "plain", Fields: Fields{"bogus": Number(1)}},
	})
	require.ErrorIs(t, err, ErrComponentField)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, "plain", fe.Component)
	require.Equal(t, "bogus", fe.Field)
}

func TestAddComponentRejectsDuplicateName(t *testing.T) {
	var journal []string
	first := newRecorder("a", &journal)
	o := newObject(t, first)

	require.False(t, o.AddComponent(newRecorder("a", &journal)))
	got, ok := o.GetComponent("a")
	require.True(t, ok)
	require.Same(t, first, got)
	require.Equal(t, 2, o.Len())
}

func TestRemoveComponent(t *testing.T) {
	var journal []string
	a := newRecorder("a", &journal)
	o := newObject(t, a)

	require.False(t, o.RemoveComponent("missing"))
	require.False(t, o.RemoveInstance(newRecorder("a", &journal)), "different instance with same name")
	require.True(t, o.RemoveInstance(a))
	require.Equal(t, 1, a.detached)
	require.Nil(t, a.Owner())
	require.False(t, o.RemoveComponent("a"))
}

func TestDistributeEventOrder(t *testing.T) {
	var journal []string
	o := newObject(t,
		newRecorder("a", &journal),
		newRecorder("b", &journal),
		newRecorder("c", &journal),
	)

	o.DistributeEvent(pingEvent{})
	require.Equal(t, []string{"a:ping", "b:ping", "c:ping"}, journal)

	journal = journal[:0]
	o.DistributeEvent(event.Tick{DT: 0.1})
	require.Equal(t, []string{"a:tick", "b:tick", "c:tick"}, journal)
}

// detacher removes a sibling while an event is being distributed.
type detacher struct {
	Base
	victim string
}

func (d *detacher) Handle(event.Event) {
	d.Owner().RemoveComponent(d.victim)
}

func TestDistributeSkipsComponentsDetachedMidPass(t *testing.T) {
	var journal []string
	o := newObject(t,
		&detacher{Base: NewBase("killer"), victim: "b"},
		newRecorder("b", &journal),
		newRecorder("c", &journal),
	)
	o.DistributeEvent(pingEvent{})
	require.Equal(t, []string{"c:ping"}, journal)
}

func TestNewGameObjectRequiresPosition(t *testing.T) {
	var journal []string
	rec := newRecorder("a", &journal)
	_, err := NewGameObject(3, "bare", []Component{rec})
	require.ErrorIs(t, err, ErrMissingPosition)
	require.Equal(t, 1, rec.detached, "partially built entity must be torn down")
}

func TestNewGameObjectRejectsDuplicates(t *testing.T) {
	var journal []string
	_, err := NewGameObject(3, "dup", []Component{newStubPos(), newRecorder("a", &journal), newRecorder("a", &journal)})
	require.ErrorIs(t, err, ErrDuplicateComponent)
}

func TestDestroyDetachesEverything(t *testing.T) {
	var journal []string
	a, b := newRecorder("a", &journal), newRecorder("b", &journal)
	o := newObject(t, a, b)
	o.Destroy()
	require.True(t, o.Destroyed())
	require.Zero(t, o.Len())
	require.Equal(t, 1, a.detached)
	require.Equal(t, 1, b.detached)
	require.Nil(t, o.PositionComponent())
}

type moveSink struct {
	moves []geom.Vec2
}

func (m *moveSink) ObjectMoved(_ *GameObject, from geom.Vec2) { m.moves = append(m.moves, from) }

func TestPositionNotifiesHost(t *testing.T) {
	o := newObject(t)
	sink := &moveSink{}
	o.Bind(sink)
	o.PositionComponent().SetPosition(geom.V(3, 4))
	require.Equal(t, []geom.Vec2{{}}, sink.moves)
	require.Equal(t, geom.V(3, 4), o.Position())
}

func TestHandleCounter(t *testing.T) {
	c := NewHandleCounter()
	require.Equal(t, Handle(1), c.Next())
	require.Equal(t, Handle(2), c.Next())
	c.Advance(10)
	require.Equal(t, Handle(11), c.Next())
	c.Advance(5)
	require.Equal(t, Handle(12), c.Peek(), "counter never moves backwards")
}

func TestComponentInfoMerge(t *testing.T) {
	parent := ComponentInfo{Name: "rotation", Fields: Fields{"value": String("0"), "spin": Number(1)}}
	child := ComponentInfo{Name: "rotation", Fields: Fields{"value": String("90")}}

	got, err := parent.Merge(child)
	require.NoError(t, err)
	require.True(t, got.Fields.Equal(Fields{"value": String("90"), "spin": Number(1)}))
	require.Equal(t, String("0"), parent.Fields["value"], "merge must not mutate the parent")

	_, err = parent.Merge(ComponentInfo{Name: "scale"})
	require.ErrorIs(t, err, ErrTemplateMerge)
}

type aliased struct{ Base }

func (a *aliased) CanonicalFields(f Fields) Fields {
	return RenameFields(f, map[string]string{PrimaryField: "rate", "speed": "rate"})
}

func TestRegistryCanonical(t *testing.T) {
	r := NewRegistry()
	r.Declare("spin", func() Component { return &aliased{Base: NewBase("spin")} })
	r.Declare("plain", func() Component { return &stubPos{Base: NewBase("plain")} })

	got := r.Canonical(ComponentInfo{Name: "spin", Fields: Fields{"value": Number(90)}})
	require.Equal(t, Fields{"rate": Number(90)}, got.Fields)

	got = r.Canonical(ComponentInfo{Name: "spin", Fields: Fields{"value": Number(90), "rate": Number(45)}})
	require.Equal(t, Fields{"rate": Number(45)}, got.Fields, "canonical key wins within one entry")

	got = r.Canonical(ComponentInfo{Name: "spin", Fields: Fields{"speed": Number(3), "value": Number(4)}})
	require.Equal(t, Fields{"rate": Number(3)}, got.Fields, "first alias in sorted order wins")

	in := ComponentInfo{Name: "plain", Fields: Fields{"value": Number(1)}}
	require.Equal(t, in, r.Canonical(in))
	require.Equal(t, in, (*Registry)(nil).Canonical(in))

	parent := r.Canonical(ComponentInfo{Name: "spin", Fields: Fields{"value": Number(90)}})
	merged, err := parent.Merge(r.Canonical(ComponentInfo{Name: "spin", Fields: Fields{"rate": Number(45)}}))
	require.NoError(t, err)
	require.Equal(t, Fields{"rate": Number(45)}, merged.Fields)
}

func TestValueParsers(t *testing.T) {
	tests := []struct {
		name    string
		in      Value
		uniform bool
		want    geom.Vec2
		wantErr bool
	}{
		{name: "pair string", in: String("2,3"), want: geom.V(2, 3)},
		{name: "spaced pair", in: String(" 1.5 , -2 "), want: geom.V(1.5, -2)},
		{name: "uniform number", in: Number(2), uniform: true, want: geom.V(2, 2)},
		{name: "uniform string", in: String("4"), uniform: true, want: geom.V(4, 4)},
		{name: "number without uniform", in: Number(2), wantErr: true},
		{name: "garbage", in: String("a,b"), wantErr: true},
		{name: "too many parts", in: String("1,2,3"), wantErr: true},
		{name: "none", in: None(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Vec2(tt.uniform)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	f, err := String("45").Float()
	require.NoError(t, err)
	require.Equal(t, 45.0, f)
	f, err = Number(45).Float()
	require.NoError(t, err)
	require.Equal(t, 45.0, f)
	_, err = String("1.5").Int()
	require.Error(t, err)
}
