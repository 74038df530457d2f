package main

import (
	"flag"
	"fmt"
	"log"
	"net"

	"skoll/internal/common"
	skollnet "skoll/internal/net"
)

// Minimal interactive client for poking a running server: place one
// order, cancel, or refresh a quote, then print the reports that come
// back.
func main() {
	addr := flag.String("addr", "127.0.0.1:9001", "server address")
	action := flag.String("action", "place", "place | cancel | quote")
	instrument := flag.String("instrument", "AAPL", "instrument")
	side := flag.String("side", "buy", "buy | sell")
	price := flag.String("price", "", "limit price, empty for market")
	qty := flag.Uint64("qty", 0, "quantity")
	exchangeID := flag.Int64("id", 0, "exchange id to cancel")
	bidPrice := flag.String("bid", "0", "quote bid price")
	bidQty := flag.Uint64("bidqty", 0, "quote bid quantity")
	askPrice := flag.String("ask", "0", "quote ask price")
	askQty := flag.Uint64("askqty", 0, "quote ask quantity")
	quoteID := flag.String("quote", "Q1", "quote id")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg []byte
	switch *action {
	case "place":
		m := skollnet.NewOrderMessage{
			Instrument: *instrument,
			Quantity:   *qty,
			Market:     *price == "",
		}
		if *side == "sell" {
			m.Side = common.Sell
		}
		if !m.Market {
			px, err := common.ParseFixed(*price)
			if err != nil {
				log.Fatalf("price: %v", err)
			}
			m.Price = px.Raw()
		}
		msg = m.Serialize()
	case "cancel":
		if *exchangeID == 0 {
			log.Fatal("cancel requires -id")
		}
		m := skollnet.CancelOrderMessage{ExchangeID: *exchangeID}
		msg = m.Serialize()
	case "quote":
		bid, err := common.ParseFixed(*bidPrice)
		if err != nil {
			log.Fatalf("bid: %v", err)
		}
		ask, err := common.ParseFixed(*askPrice)
		if err != nil {
			log.Fatalf("ask: %v", err)
		}
		m := skollnet.NewQuoteMessage{
			Instrument:  *instrument,
			BidPrice:    bid.Raw(),
			BidQuantity: *bidQty,
			AskPrice:    ask.Raw(),
			AskQuantity: *askQty,
			QuoteID:     *quoteID,
		}
		msg = m.Serialize()
	default:
		log.Fatalf("unknown action %q", *action)
	}

	if _, err := conn.Write(msg); err != nil {
		log.Fatalf("write: %v", err)
	}

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		report, err := skollnet.ParseReport(buf[:n])
		if err != nil {
			log.Printf("bad report: %v", err)
			continue
		}
		printReport(report)
	}
}

func printReport(r skollnet.Report) {
	switch r.TypeOf {
	case skollnet.OrderAck:
		fmt.Printf("ack id=%d instrument=%s\n", r.ExchangeID, r.Instrument)
	case skollnet.ExecutionReport:
		fmt.Printf("fill id=%d exec=%d price=%s qty=%d\n",
			r.ExchangeID, r.ExecID, common.FixedFromRaw(r.Price), r.Quantity)
	case skollnet.QuoteAck:
		fmt.Printf("quote ack instrument=%s\n", r.Instrument)
	case skollnet.RejectReport:
		fmt.Printf("rejected: %s\n", r.Reason)
	}
}
