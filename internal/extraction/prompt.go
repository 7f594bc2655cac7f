package extraction

// invoiceScanPrompt is the shared prompt used by all LLM providers for
// extracting invoice fields. It is a strict schema contract: exact output
// keys, DD-MM-YYYY dates, and carrier-specific disambiguation rules.
const invoiceScanPrompt = `You are analyzing a shipment or delivery invoice PDF. Carefully read all text in the document and extract the following information:

1. **Invoice Number**: The invoice or bill number, usually near the top, labeled "Invoice No", "Invoice Number", "Bill No" or similar.

2. **Sender Pincode**: The 6-digit postal pincode of the sender, taken from the billing/"bill from"/seller address.

3. **Receiver Pincode**: The 6-digit postal pincode of the receiver, taken from the shipping/"ship to"/buyer address.

4. **Delivery/Shipment Charge**: The delivery, shipping, or freight charge on the invoice. Keep the value as printed, including any currency symbol and tax note.

5. **Main Date**: The primary date of the invoice (delivery, billing, or invoice date). Format it as DD-MM-YYYY.

Special rule for Delhivery invoices: Delhivery does not print a separate delivery charge line. If the invoice is from Delhivery, use the "Total" or "Grand Total" amount as the delivery charge, and take the sender and receiver pincodes from the pickup location and drop location instead of the billing and shipping addresses.

Return ONLY valid JSON in this exact format:
{
  "invoice_number": "...",
  "sender_pincode": "...",
  "receiver_pincode": "...",
  "delivery_charge": "...",
  "main_date": "DD-MM-YYYY"
}

Important:
- If a field is not present in the document, put "NA" for that field
- The main date must be in DD-MM-YYYY format
- Pincodes are 6-digit numerals
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
