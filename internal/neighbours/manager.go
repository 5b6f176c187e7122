package neighbours

import (
	"fmt"
	"maps"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/nblist/internal/config"
	"github.com/banshee-data/nblist/internal/generator"
	"github.com/banshee-data/nblist/internal/geometry"
	"github.com/banshee-data/nblist/internal/images"
	"github.com/banshee-data/nblist/internal/monitoring"
	"github.com/banshee-data/nblist/internal/pairlist"
	"github.com/banshee-data/nblist/internal/selection"
	"github.com/banshee-data/nblist/internal/status"
	"github.com/banshee-data/nblist/internal/timeutil"
	"github.com/banshee-data/nblist/internal/update"
)

// Options are fixed for the lifetime of a Manager.
type Options struct {
	Transformations *geometry.Transformation3Container // enables image pair lists
	Free            *selection.Selection               // particles that move; nil means all
	Radii           []float64
	Bonds           *pairlist.PairList // excluded from the self list
	Collector       *monitoring.Collector
	Clock           timeutil.Clock // times rebuilds; nil means the real clock
}

// Statistics counts the work done by a Manager.
type Statistics struct {
	Builds          int
	Checks          int
	Rebuilds        map[string]int // by monitoring.Rebuild* reason
	Pairs           int
	Images          int
	MaxDisplacement float64       // at the last check
	LastBuild       time.Duration // wall time of the last rebuild
}

// Manager caches neighbour lists between steps. It is not safe for
// concurrent use.
type Manager struct {
	opts      Options
	gen       *generator.Generator
	checker   *update.Checker
	cutOff    float64
	imageOpts images.Options

	pairs      *pairlist.PairList
	exclusions *pairlist.PairExcluded
	scans      *images.ImageScanContainer
	imageLists *images.ImagePairListContainer
	reference  geometry.Coordinates3
	refSym     *geometry.SymmetryParameters
	force      bool
	stats      Statistics
}

// New returns a Manager that builds lists at cut_off + buffer from cfg.
func New(cfg *config.TuningConfig, opts Options) (*Manager, error) {
	if cfg == nil {
		cfg = config.MustLoadDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen, err := generator.New(generator.ConfigFromTuning(cfg))
	if err != nil {
		return nil, err
	}
	if opts.Collector != nil {
		gen.SetCollector(opts.Collector)
	}
	checker, err := update.NewChecker(cfg.GetBuffer())
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	imageOpts := images.OptionsFromTuning(cfg)
	return &Manager{
		opts:      opts,
		gen:       gen,
		checker:   checker,
		cutOff:    imageOpts.CutOff,
		imageOpts: imageOpts,
		stats:     Statistics{Rebuilds: make(map[string]int)},
	}, nil
}

// ListCutOff returns the cut-off the lists are built with.
func (m *Manager) ListCutOff() float64 { return m.cutOff }

// ForceRebuild makes the next Update rebuild unconditionally.
func (m *Manager) ForceRebuild() { m.force = true }

// PairList returns the current self pair list, nil before the first Update.
func (m *Manager) PairList() *pairlist.PairList { return m.pairs }

// ImagePairLists returns the current image pair lists, nil when the
// Manager has no transformations.
func (m *Manager) ImagePairLists() *images.ImagePairListContainer { return m.imageLists }

// Statistics returns a snapshot of the counters.
func (m *Manager) Statistics() Statistics {
	s := m.stats
	s.Rebuilds = maps.Clone(m.stats.Rebuilds)
	return s
}

// Update brings the lists up to date with coords and the cell sym (nil for
// an open system) and reports whether they were rebuilt.
func (m *Manager) Update(coords geometry.Coordinates3, sym *geometry.SymmetryParameters) (bool, error) {
	if m.opts.Transformations != nil && sym == nil {
		return false, fmt.Errorf("image lists need a cell: %w", status.ErrInvalidArgument)
	}
	if m.reference != nil && len(coords) != len(m.reference) {
		return false, fmt.Errorf("%d coordinates after building for %d: %w", len(coords), len(m.reference), status.ErrNonConformableArrays)
	}

	reason, err := m.staleness(coords, sym)
	if err != nil {
		return false, err
	}
	if reason == "" {
		return false, nil
	}
	start := m.opts.Clock.Now()
	if err := m.rebuild(coords, sym); err != nil {
		return false, err
	}
	m.stats.LastBuild = m.opts.Clock.Since(start)
	m.force = false
	m.stats.Rebuilds[reason]++
	if c := m.opts.Collector; c != nil {
		c.Rebuilds.WithLabelValues(reason).Inc()
		c.Pairs.Set(float64(m.stats.Pairs))
		c.Images.Set(float64(m.stats.Images))
	}
	monitoring.Logf("[neighbours] rebuilt lists (%s) in %v: %d pairs, %d images, max displacement %.3f",
		reason, m.stats.LastBuild, m.stats.Pairs, m.stats.Images, m.stats.MaxDisplacement)
	return true, nil
}

// staleness returns the rebuild reason, or "" when the lists still hold.
func (m *Manager) staleness(coords geometry.Coordinates3, sym *geometry.SymmetryParameters) (string, error) {
	switch {
	case m.reference == nil:
		return monitoring.RebuildInitial, nil
	case m.force:
		return monitoring.RebuildForced, nil
	case (sym == nil) != (m.refSym == nil):
		return monitoring.RebuildLattice, nil
	}

	m.stats.Checks++
	rebuild, maxDisp, err := m.checker.CheckForUpdate(m.reference, coords, m.opts.Free)
	if err != nil {
		return "", err
	}
	m.stats.MaxDisplacement = maxDisp
	if c := m.opts.Collector; c != nil {
		c.Checks.Inc()
		c.MaxDisplacement.Observe(maxDisp)
	}
	if rebuild {
		return monitoring.RebuildDisplacement, nil
	}
	if sym == nil || sym == m.refSym {
		monitoring.Debugf("[neighbours] lists current, max displacement %.3f", maxDisp)
		return "", nil
	}

	rebuild, change, err := m.checker.CheckForImageUpdate(m.refSym, sym, m.offsets(), maxDisp)
	if err != nil {
		return "", err
	}
	if rebuild {
		return monitoring.RebuildLattice, nil
	}
	monitoring.Debugf("[neighbours] lists current, max displacement %.3f, image change %.3f", maxDisp, change)
	return "", nil
}

// offsets returns the image offsets to watch, or nil for the half shell.
func (m *Manager) offsets() []r3.Vec {
	if m.scans == nil {
		return nil
	}
	return m.scans.FractionalOffsets(m.opts.Transformations)
}

func (m *Manager) rebuild(coords geometry.Coordinates3, sym *geometry.SymmetryParameters) error {
	if m.opts.Bonds != nil && m.exclusions == nil {
		ex, err := pairlist.MakeExcluded(m.opts.Bonds, len(coords))
		if err != nil {
			return err
		}
		m.exclusions = ex
	}

	in := generator.Input{
		Coordinates: coords,
		Radii:       m.opts.Radii,
		Exclusions:  m.exclusions,
		CutOff:      m.cutOff,
	}
	if sym != nil && m.opts.Transformations == nil {
		if !sym.IsOrthorhombic() {
			return fmt.Errorf("minimum image needs an orthorhombic cell, got angles %g %g %g: %w", sym.Alpha, sym.Beta, sym.Gamma, status.ErrInvalidArgument)
		}
		box, err := geometry.NewPeriodicBox(sym.Lengths())
		if err != nil {
			return err
		}
		in.Box = box
	}
	pairs, err := m.gen.SelfPairList(in)
	if err != nil {
		return err
	}

	var scans *images.ImageScanContainer
	var lists *images.ImagePairListContainer
	if m.opts.Transformations != nil {
		if scans, err = images.Scan(coords, sym, m.opts.Transformations, m.imageOpts); err != nil {
			return err
		}
		if lists, err = images.NewImagePairListContainer(m.gen, coords, sym, m.opts.Transformations, scans, m.imageOpts); err != nil {
			return err
		}
	}

	m.pairs, m.scans, m.imageLists = pairs, scans, lists
	m.reference = coords.Clone()
	m.refSym = sym
	m.stats.Builds++
	m.stats.Pairs = pairs.NumberOfPairs()
	m.stats.Images = 0
	if lists != nil {
		m.stats.Images = lists.Count()
	}
	return nil
}

// Molecules returns the connected components of the bond list over the
// particles of the last build. Without bonds every particle is its own
// molecule.
func (m *Manager) Molecules() (*selection.SelectionContainer, error) {
	if m.reference == nil {
		return nil, fmt.Errorf("molecules before the first update: %w", status.ErrAlgorithmError)
	}
	bonds := m.opts.Bonds
	if bonds == nil {
		bonds = pairlist.Empty(true)
	}
	return bonds.ConnectedComponents(len(m.reference))
}
