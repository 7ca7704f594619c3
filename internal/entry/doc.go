/*
Package entry reconciles in-memory directory entries with desired attribute
values.

# Data Model

An Entry is a distinguished name plus a set of Attributes. Each Attribute has
a name, a binary flag and an ordered set of wire values. Attribute names are
matched case-insensitively and an entry holds at most one attribute per name.

# Synchronization

SetValues compares the desired values of one attribute with the values
currently held by the entry and produces at most one Modification:

	current | desired | equal | result
	--------+---------+-------+--------
	absent  | empty   |   -   | none
	absent  | values  |   -   | ADD
	present | empty   |   -   | DELETE
	present | values  |  yes  | none
	present | values  |  no   | REPLACE

Desired and current values are normalized the same way before comparison:
both are converted to wire form through the attribute's Transcoder, empty
wire values are dropped and duplicate values collapse onto their first
occurrence. Comparison is order-sensitive.

The entry is mutated in place whenever a Modification is returned and is left
untouched otherwise. Entries are not safe for concurrent mutation.

AddValues, RemoveValues and RemoveAttribute build on SetValues to express
incremental changes.

# Example

	e := entry.NewEntry("cn=alice,ou=people,dc=example,dc=com")
	mod, err := entry.SetValue(e, "mail", "alice@example.com", false, entry.String)
	if err != nil {
		return err
	}
	if mod != nil {
		mods = append(mods, *mod)
	}
*/
package entry
