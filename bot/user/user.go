// © 2020 the PicBot Authors under the WTFPL. See AUTHORS for the list of authors.

package user

// User is what we know about the person talking at us. ID is whatever
// identifier the connector hands out and may not be numeric.
type User struct {
	ID    string
	Name  string
	Admin bool
}
