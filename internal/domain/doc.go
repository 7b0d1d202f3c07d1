// Package domain contains the core business entities, value objects, and
// domain logic of the application: generation charts, their status
// lifecycle, and the raw datasets uploaded alongside them. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
