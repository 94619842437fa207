/*
Package deedtest provides test doubles and helpers shared by the test suites
of all packages: keys, addresses, a message and a handler double and
context builders for calls.
*/
package deedtest
