// Package crawler walks a web site from a start URL and hands the visible
// text of every page to a callback.
//
// # Architecture
//
// Spider.Crawl runs one coordinator loop and a fixed pool of worker
// goroutines. The coordinator owns the frontier (a FIFO of URL and depth
// pairs) and the visited set; workers receive entries over a task channel,
// fetch and parse them, and send the outcome back over a result channel.
// The crawl ends when the frontier is empty and no fetch is in flight.
//
// A URL is marked visited when it is taken off the frontier, so every URL
// is fetched at most once per crawl. Links are only queued when they share
// the start URL's scheme and host and when depth+1 does not exceed the
// maximum depth; entries that are deeper anyway are dropped at dequeue.
//
// # Components
//
//   - Spider: the coordinator and worker pool
//   - Parser: HTML parser that extracts title, visible text and links
//   - frontier / crawlState: queue, visited set and link filtering
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher, crawler.WithMaxDepth(2), crawler.WithWorkers(10))
//	stats, err := spider.Crawl(ctx, "https://example.com/", func(p *crawler.Page) {
//	    fmt.Println(p.URL, len(p.Text))
//	})
package crawler
