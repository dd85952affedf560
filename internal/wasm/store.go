package wasm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FunctionTypeID is a store-wide dedup key for structurally equal
// FunctionTypes, so two modules declaring `(func (param i32) (result
// i32))` independently resolve to the same ID. Import signature checks do
// not use it: resolveImports compares Params/Results directly via
// FunctionType.EqualsSignature.
type FunctionTypeID uint32

// ModuleInstance is a Module bound into a Store: its name, its assigned
// correlation ID, and the resolved FunctionTypeIDs for its declared types.
// Imports are not copied in; they are resolved against the Store at Call
// time via the owning Store's module registry.
type ModuleInstance struct {
	Name       string
	InstanceID uuid.UUID
	Module     *Module
	TypeIDs    []FunctionTypeID
}

// FunctionIndex resolves an export name to a combined function index, or
// ok=false if the export does not exist or does not name a function.
func (m *ModuleInstance) FunctionIndex(exportName string) (index uint32, ok bool) {
	export, found := m.Module.Exports[exportName]
	if !found || export.Kind != ExternKindFunc {
		return 0, false
	}
	return export.Index, true
}

// Store owns every instantiated ModuleInstance, keyed by module name, and
// the store-wide FunctionTypeID dedup cache (§3's cross-module
// instantiation bookkeeping, generalized from the teacher's own Store).
type Store struct {
	mux      sync.Mutex
	modules  map[string]*ModuleInstance
	typeIDs  map[string]FunctionTypeID
	nextType FunctionTypeID
	log      *zap.Logger
}

// NewStore returns an empty Store. log may be nil, in which case a no-op
// logger is used.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		modules: map[string]*ModuleInstance{},
		typeIDs: map[string]FunctionTypeID{},
		log:     log,
	}
}

// Instantiate registers module under name, resolving its function imports
// against already-registered modules in this Store, and returns the
// resulting ModuleInstance. A module name already in use is an error: the
// Store never implicitly replaces a registered module.
func (s *Store) Instantiate(module *Module, name string) (*ModuleInstance, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if _, exists := s.modules[name]; exists {
		return nil, errors.Errorf("wasm: module %q is already instantiated", name)
	}

	if err := s.resolveImports(module); err != nil {
		return nil, errors.Wrapf(err, "wasm: resolving imports for module %q", name)
	}

	typeIDs := make([]FunctionTypeID, len(module.Types))
	for i, t := range module.Types {
		typeIDs[i] = s.getFunctionTypeID(t)
	}

	instance := &ModuleInstance{
		Name:       name,
		InstanceID: uuid.New(),
		Module:     module,
		TypeIDs:    typeIDs,
	}
	s.modules[name] = instance

	s.log.Info("instantiated module",
		zap.String("module", name),
		zap.String("instance_id", instance.InstanceID.String()),
		zap.Int("functions", int(module.FunctionCount())),
	)

	return instance, nil
}

// Module returns the registered instance for name, or ok=false if no such
// module is registered.
func (s *Store) Module(name string) (*ModuleInstance, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	m, ok := s.modules[name]
	return m, ok
}

// resolveImports validates that every function import in module names an
// already-registered module and export with a matching signature. It does
// not rewrite module; a successful call only means every import is
// resolvable by (module name, field) lookup at Call time.
func (s *Store) resolveImports(module *Module) error {
	for i, imp := range module.Imports {
		if imp.Kind != ExternKindFunc {
			continue
		}
		exporter, ok := s.modules[imp.Module]
		if !ok {
			return errorUnresolvedImport(imp, i, errors.Errorf("module %q is not registered", imp.Module))
		}
		export, ok := exporter.Module.Exports[imp.Field]
		if !ok || export.Kind != ExternKindFunc {
			return errorUnresolvedImport(imp, i, errors.Errorf("module %q has no function export %q", imp.Module, imp.Field))
		}
		wantType := module.Types[imp.TypeIndex]
		gotType := exporter.Module.FunctionTypeOf(export.Index)
		if !gotType.EqualsSignature(wantType.Params, wantType.Results) {
			return errorUnresolvedImport(imp, i, errors.Errorf("signature mismatch: want %s, got %s", wantType, gotType))
		}
	}
	return nil
}

func errorUnresolvedImport(imp *Import, idx int, cause error) error {
	return errors.Wrapf(cause, "wasm: import %d (%s.%s)", idx, imp.Module, imp.Field)
}

// getFunctionTypeID returns t's store-wide dedup ID, assigning a new one
// the first time a structurally distinct type is seen.
func (s *Store) getFunctionTypeID(t *FunctionType) FunctionTypeID {
	key := t.String()
	if id, ok := s.typeIDs[key]; ok {
		return id
	}
	id := s.nextType
	s.nextType++
	s.typeIDs[key] = id
	return id
}
