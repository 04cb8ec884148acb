// Package models contains GORM persistence models that map to database tables.
// They are kept apart from the domain types so the domain stays free of ORM tags;
// repositories convert with ToDomain and FromDomain.
package models
