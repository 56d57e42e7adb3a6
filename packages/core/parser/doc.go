// Package parser reads hitcontract suite files.
//
// A suite is a YAML document with shared settings (baseUrl, timeout,
// headers, variables, auth) and a list of cases. Each case describes one
// request, the expectations on its response, and values to capture for
// later cases:
//
//	cases:
//	  - name: creates employee
//	    request:
//	      method: POST
//	      url: /company/{{companyId}}/employees
//	      json: {name: "Novo Funcionário"}
//	    expect:
//	      status: 201
//	      bodyLike: {id: $number, name: $string}
//	    capture:
//	      employeeId: body.id
//
// Request bodies and patterns are kept as JSON text so {{...}}
// expressions can be resolved right before a case runs.
package parser
