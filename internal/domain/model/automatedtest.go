package model

// TestKey identifies an automated test by its package and name. Package names
// use backslash-separated repository folders; tests at the repository root
// have an empty package.
type TestKey struct {
	PackageName string
	Name        string
}

// AutomatedTest is one test folder discovered in the repository, together
// with the actions it contains and its synchronization status.
type AutomatedTest struct {
	Name        string
	PackageName string
	Type        TestType
	Executable  bool
	Description string
	Actions     []Action
	SyncStatus  SyncStatus

	// Move tracking. IsMoved is set when an edit changed the test's name or
	// package; the Old fields then hold the pre-move identity.
	IsMoved        bool
	OldName        string
	OldPackageName string
}

// Key returns the test's identity for dedupe maps.
func (t *AutomatedTest) Key() TestKey {
	return TestKey{PackageName: t.PackageName, Name: t.Name}
}

// PathPrefix is the backslash-separated repository path of the test folder,
// the prefix under which all of its action paths live.
func (t *AutomatedTest) PathPrefix() string {
	return joinPrefix(t.PackageName, t.Name)
}

// OldPathPrefix is the path prefix before a move. Falls back to the current
// prefix when the test never moved.
func (t *AutomatedTest) OldPathPrefix() string {
	if !t.IsMoved {
		return t.PathPrefix()
	}
	return joinPrefix(t.OldPackageName, t.OldName)
}

func joinPrefix(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + `\` + name
}

// Action is a single callable unit inside a test: one reusable action for the
// GUI tool, one model-based unit for the MBT flavor.
type Action struct {
	Name           string
	LogicalName    string
	TestName       string
	RepositoryPath string
	Description    string
	Params         []Param
	SyncStatus     SyncStatus

	// UnitID links the action to its remote unit once the reconciler has
	// matched it. Nil means not yet known remotely.
	UnitID *int64

	IsMoved     bool
	OldTestName string
}

// Param is an action parameter read from the action's resource file.
type Param struct {
	Name         string
	Direction    ParamDirection
	DefaultValue string
	SyncStatus   SyncStatus
}
