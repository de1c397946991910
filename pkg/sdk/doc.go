// Package meetdex provides a Go client for the meetdex meeting search
// service HTTP API.
//
//	client := meetdex.New("http://localhost:8080",
//	    meetdex.WithAPIKey(os.Getenv("MEETDEX_API_KEY")),
//	)
//	result, _ := client.Search(ctx, meetdex.SearchRequest{
//	    Query: "what did we decide about the Q3 roadmap?",
//	    OrgID: "org-1",
//	})
//	fmt.Println(result.Answer)
//
// Strategy failures are not Go errors: a search that found nothing comes
// back with result.Success == false and the reason in result.Error. Go
// errors are reserved for transport and server problems.
package meetdex
