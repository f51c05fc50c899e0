// Package shop holds the storefront business calls: customer profile, orders, shipping
// quotes, checkout and the contact form.
//
// Every authenticated call goes through [storefront.Client.DoJSON], so token refresh
// and the single 401 replay apply without any handling here. Errors are the client's
// *storefront.Error values, except for the sentinels declared in this package.
package shop
