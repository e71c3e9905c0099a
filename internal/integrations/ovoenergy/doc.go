// Package ovoenergy integrates the OVO Energy customer portal.
//
// The portal has no public API: the client logs in with the customer's
// username and password, keeps the session cookie and reads the smart
// meter usage the account pages show. Daily usage is requested per month
// and half-hourly usage per day; sensors report the most recent complete
// day and the latest half hour. A reauth flow asks for a new password
// and updates the existing entry.
package ovoenergy
