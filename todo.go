/*
	Project: Masomo Dashboard - admin dashboard of https://masomo.cd
	Lists are fetched whole from the Masomo backend, then searched, sorted and paginated in memory.
*/
package masomo

/*
TODO: sessions are kept in memory: a restart logs every admin out
TODO: GET /v1/screens/:resource loads whole collections; switch to backend pagination for invoices & tickets once the API supports it
TODO: ticket socket: resume from the last message id after a reconnect instead of waiting for a snapshot

FE: one screen per resource (see core/resource), ticket threads beside the tickets screen.
*/
