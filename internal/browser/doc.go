/*
Package browser implements the headless browser driven by the sandbox.

# Overview

The driver keeps exactly one loaded page: the final URL after redirects, the HTTP
status and a parsed DOM. Every interaction works on that DOM:

 1. Fetch: resty over a pooled transport, cookie jar per driver, per-origin navigation circuit breakers
 2. Decode: charset from headers/BOM/meta, chardet when the document does not say
 3. Parse: goquery document; CSS selectors through cascadia, XPath through htmlquery
 4. Interact: clicks follow links, submit forms and toggle inputs; fills set values in place
 5. Script: goja runtime with a document proxy bound to the live DOM

# Selectors

CSS by default. Selectors starting with "/" or "(" or prefixed with "xpath=" are
evaluated as XPath:

	d.Click(ctx, "form#login button[type=submit]")
	d.Text("xpath=//h1[1]")

# Concurrency

A Driver is not safe for concurrent use. The sandbox session serializes every call.

# Errors

Failures wrap one of the package sentinels (ErrNavigation, ErrElementNotFound,
ErrNotInteractable, ErrInvalidSelector, ErrScript, ErrDriverClosed) so callers can
classify them with errors.Is.
*/
package browser
