// Package onenote walks a OneNote notebook through Microsoft Graph.
//
// Traversal is lazy and single-threaded. Sections yields the sections under a
// notebook that match a section-group filter and a section filter, each
// tagged with its output path. SectionPages turns a section's flat,
// order-sorted page listing back into a tree by tagging every page with the
// titles of its ancestor pages.
//
// Group filters:
//
//	*          every section, at any depth
//	/          only the sections directly under the notebook
//	G1/G2      only sections of the group reached through G1 then G2
//
// Section filters are either * or an exact display name.
package onenote
