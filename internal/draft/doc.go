// Package draft holds an editable working copy of a record collection next to
// the last committed snapshot. Create, update and delete only touch the
// working copy; SaveChanges persists the whole working map through a
// Transport and DiscardChanges restores the snapshot.
package draft
