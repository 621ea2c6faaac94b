// Package repository is the public face of the entity repository: per-type
// finders, dynamic findBy/findOneBy/countBy shortcuts, lazy criteria
// collections and the Manager that ties them to one unit of work.
//
// Every operation runs the same pipeline:
//
//	criteria.Normalizer -> planner.Planner -> Executor -> uow.Hydrator
//
// Field names are resolved against metadata before any SQL is built, so a
// name that is not mapped fails with ormerr.ErrUnrecognizedField and no
// query is issued. Each call issues at most one query; validation failures
// issue none.
//
// Basic usage:
//
//	m := repository.NewManager(reg, st)
//	users, err := m.Repository("CmsUser")
//	devs, err := users.FindBy(ctx, criteria.Map{"status": "dev"},
//		repository.OrderBy("username", "ASC"))
//	u, err := users.Find(ctx, 1)
//	same, err := users.Find(ctx, 1) // same instance, no query
package repository
