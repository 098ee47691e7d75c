// Package users provides the relational user-management backend for MemOS:
// schema bootstrap plus user/cube data access over SQLite, MySQL, or
// Postgres.
//
// This package is the Go implementation of the mem_user backends found in
// the original MemOS system. It provides:
//
//   - Idempotent schema bootstrap: the memos namespace, the users, cubes,
//     and user_cube_association tables, and their secondary indexes are
//     created in dependency order if absent, verified if present, and never
//     altered
//   - Interchangeable backends selected by configuration or by the
//     MOS_USER_MANAGER environment variable (legacy alias
//     MOS_USER_MANAGER_BACKEND)
//   - User lifecycle management with soft deletes and a protected root user
//   - Cube ownership and many-to-many cube sharing
//
// # Architecture
//
// The package follows a layered architecture:
//
//	┌─────────────────┐
//	│    Manager      │  ← Validation and orchestration
//	├─────────────────┤
//	│   Repository    │  ← Data access
//	├─────────────────┤
//	│  GORM backend   │  ← sqlite / mysql / postgres driver
//	└─────────────────┘
//
// # Usage
//
//	cfg, err := config.FromEnv()
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager, err := users.NewManager(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer manager.Close()
//
//	userID, err := manager.CreateUser("alice", users.RoleUser, "")
//	cubeID, err := manager.CreateCube("alice-notes", userID, "", "")
//
// Constructing a Manager runs the bootstrap, so the schema always exists
// before the first row operation. Bootstrap itself is safe to re-run any
// number of times, including from concurrent deployment jobs.
package users
