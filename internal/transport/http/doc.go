// Package http implements the HTTP handlers for the signet license
// service. It is a thin layer between transport and business logic:
// handlers parse requests, call services, and format responses.
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → license core
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Handler Structure
//
// Each handler follows this pattern:
//
//	func (h *Handler) HandleSomething(w http.ResponseWriter, r *http.Request) {
//	    // 1. Parse the request
//	    data := &SomeRequest{}
//	    if err := render.Decode(r, data); err != nil {
//	        render.Render(w, r, problemFor(err))
//	        return
//	    }
//
//	    // 2. Call the service layer
//	    result, err := h.service.DoSomething(r.Context(), data)
//	    if err != nil {
//	        render.Render(w, r, problemFor(err))
//	        return
//	    }
//
//	    // 3. Format and send the response
//	    render.JSON(w, r, toResponse(result))
//	}
//
// # Error Handling
//
// License failures map onto RFC 7807 problem responses carrying the
// license error code in the error_code extension:
//
//	{
//	    "type": "/errors/license/expired",
//	    "title": "License Expired",
//	    "status": 403,
//	    "detail": "license expired at 2026-01-01T00:00:00Z",
//	    "instance": "/api/license/validate#trace-abc",
//	    "error_code": "LICENSE_EXPIRED",
//	    "trace_id": "abc"
//	}
package http
