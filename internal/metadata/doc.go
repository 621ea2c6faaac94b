// Package metadata resolves field names against entity types.
//
// A Registry holds the immutable entity types of one application and
// answers the single question every other layer asks: is this name a scalar
// field, an owning-side association or an inverse-side association? Names
// that do not resolve are rejected with ormerr.CodeUnrecognizedField, which
// is what keeps caller-supplied text out of generated SQL.
//
// Entity types are declared in CUE and loaded with LoadDir or CompileSource:
//
//	entity: CmsArticle: {
//		table:   "cms_articles"
//		version: "version"
//		fields: {id: int, topic: string, text: string, version: int}
//		associations: user: {target: "CmsUser", joinColumn: "user_id"}
//	}
//
// Build and the loaders validate cross-type references (targets, mappedBy,
// identifier and version fields) and reject table or column names that are
// not plain SQL identifiers.
package metadata
